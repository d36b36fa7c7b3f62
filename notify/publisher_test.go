package notify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/omop2owl/pipeline"
)

func startServer(t *testing.T) *server.Server {
	t.Helper()
	ns, err := server.NewServer(&server.Options{
		Host:   "127.0.0.1",
		Port:   -1,
		NoLog:  true,
		NoSigs: true,
	})
	require.NoError(t, err)

	go ns.Start()
	if !ns.ReadyForConnections(5 * time.Second) {
		ns.Shutdown()
		t.Fatal("embedded NATS server failed to start")
	}
	t.Cleanup(func() {
		ns.Shutdown()
		ns.WaitForShutdown()
	})
	return ns
}

func TestPublish(t *testing.T) {
	ns := startServer(t)

	sub, err := nats.Connect(ns.ClientURL())
	require.NoError(t, err)
	defer sub.Close()

	msgs := make(chan *nats.Msg, 4)
	s, err := sub.ChanSubscribe(DefaultSubjectPrefix+".>", msgs)
	require.NoError(t, err)
	defer s.Unsubscribe()
	require.NoError(t, sub.Flush())

	pub, err := Connect(ns.ClientURL(), "", nil)
	require.NoError(t, err)
	defer pub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	report := &pipeline.Report{RunID: "run-1", Mode: pipeline.ModeMerged, OntologyID: "OMOP", Concepts: 3}
	require.NoError(t, pub.Publish(ctx, report))

	select {
	case msg := <-msgs:
		assert.Equal(t, "omop2owl.run.completed", msg.Subject)
		assert.Equal(t, "run-1", msg.Header.Get(HeaderRunID))

		var got pipeline.Report
		require.NoError(t, json.Unmarshal(msg.Data, &got))
		assert.Equal(t, "OMOP", got.OntologyID)
		assert.Equal(t, 3, got.Concepts)
	case <-ctx.Done():
		t.Fatal("report not received")
	}

	failed := &pipeline.Report{RunID: "run-2", Error: "robot failed"}
	require.NoError(t, pub.Publish(ctx, failed))

	select {
	case msg := <-msgs:
		assert.Equal(t, "omop2owl.run.failed", msg.Subject)
	case <-ctx.Done():
		t.Fatal("failure report not received")
	}
}

func TestNewPublisherDefaults(t *testing.T) {
	p := NewPublisher(nil, "", nil)
	assert.Equal(t, "omop2owl.run.completed", p.Subject(&pipeline.Report{}))

	custom := NewPublisher(nil, "etl.omop", nil)
	assert.Equal(t, "etl.omop.failed", custom.Subject(&pipeline.Report{Error: "x"}))

	// Borrowed connections are left open.
	assert.NotPanics(t, custom.Close)
}

func TestConnectFailure(t *testing.T) {
	_, err := Connect("nats://127.0.0.1:1", "", nil)
	assert.Error(t, err)
}
