package graph

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/finkg/backend/pkg/common"
)

func collect(t *testing.T, events <-chan ProgressEvent) []ProgressEvent {
	t.Helper()
	var out []ProgressEvent
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatalf("job did not finish")
		}
	}
}

func threeAnnouncements() []common.Announcement {
	return []common.Announcement{
		{ID: "1", Title: "收购公告", Content: "甲公司宣布收购乙公司"},
		{ID: "2", Title: "董事会决议", Content: "董事会审议通过议案"},
		{ID: "3", Title: "业绩预告", Content: "丙公司业绩下滑"},
	}
}

func scenarioReplies() []aiReply {
	return []aiReply{
		{text: `{"nodes":[{"type":1,"value":"收购","key":"acquisition"},{"type":0,"value":"甲公司","key":"acquirer"}]}`},
		{text: "```json\n{\"nodes\": \"unavailable\"}\n```"},
		{text: `{"nodes":[{"type":1,"value":"业绩下滑","key":"performance"}]}`},
	}
}

func runScenario(t *testing.T, s *fakeGraphStore) []ProgressEvent {
	t.Helper()
	c, _ := newTestClient(t, scenarioReplies()...)
	job, err := NewNodeJob("p1", threeAnnouncements(), c, NewSynchronizer(s))
	if err != nil {
		t.Fatalf("NewNodeJob: %v", err)
	}
	events := collect(t, job.Run(context.Background()))
	if job.State() != JobComplete {
		t.Fatalf("expected complete state, got %s", job.State())
	}
	return events
}

func TestNodeJobScenario(t *testing.T) {
	s := newFakeGraphStore()
	events := runScenario(t, s)

	if len(events) != 4 {
		t.Fatalf("expected 3 processing events and 1 terminal event, got %d", len(events))
	}
	wantProgress := []int{34, 67, 100, 100}
	for i, ev := range events {
		if ev.Progress != wantProgress[i] {
			t.Fatalf("event %d progress = %d, want %d", i, ev.Progress, wantProgress[i])
		}
	}
	for _, ev := range events[:3] {
		if ev.Status != JobProcessing || ev.Data != nil {
			t.Fatalf("unexpected processing event %+v", ev)
		}
	}
	if !strings.Contains(events[1].Message, "extraction failed") {
		t.Fatalf("soft failure must show in the message: %q", events[1].Message)
	}

	final := events[3]
	if final.Status != JobComplete || !final.Terminal() || final.Data == nil {
		t.Fatalf("unexpected terminal event %+v", final)
	}
	if final.Data.Count != 3 || len(final.Data.Nodes) != 3 || final.Data.ProjectID != "p1" {
		t.Fatalf("unexpected final payload %+v", final.Data)
	}
	if len(s.nodes["p1"]) != 3 {
		t.Fatalf("expected 3 stored nodes, got %d", len(s.nodes["p1"]))
	}
}

func TestNodeJobProgressMonotonic(t *testing.T) {
	for _, n := range []int{1, 2, 3, 7, 200} {
		prev := 0
		for i := 1; i <= n; i++ {
			p := progressPercent(i, n)
			if p <= prev || p > 100 {
				t.Fatalf("n=%d: progress %d after %d is not strictly increasing within 100", n, p, prev)
			}
			prev = p
		}
		if prev != 100 {
			t.Fatalf("n=%d: last progress %d, want 100", n, prev)
		}
	}
}

func nodeContent(nodes []common.Node) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.Type.String()+"|"+n.Value+"|"+n.Key+"|"+n.Properties[common.PropContext])
	}
	sort.Strings(out)
	return out
}

func TestNodeJobIdempotentReplace(t *testing.T) {
	s := newFakeGraphStore()
	runScenario(t, s)
	first := nodeContent(s.nodes["p1"])

	runScenario(t, s)
	second := nodeContent(s.nodes["p1"])

	if strings.Join(first, ";") != strings.Join(second, ";") {
		t.Fatalf("re-running changed the node set:\n%v\n%v", first, second)
	}
}

func TestNodeJobSaveFailure(t *testing.T) {
	s := newFakeGraphStore()
	s.failReplaceNodes = errors.New("connection reset")
	c, _ := newTestClient(t, scenarioReplies()...)
	job, err := NewNodeJob("p1", threeAnnouncements(), c, NewSynchronizer(s))
	if err != nil {
		t.Fatalf("NewNodeJob: %v", err)
	}

	events := collect(t, job.Run(context.Background()))
	last := events[len(events)-1]
	if last.Status != JobFailed || !last.Terminal() {
		t.Fatalf("expected failed terminal event, got %+v", last)
	}
	if job.State() != JobFailed {
		t.Fatalf("expected failed state, got %s", job.State())
	}
}

func TestNodeJobNoNodesKeepsStored(t *testing.T) {
	s := newFakeGraphStore()
	s.nodes["p1"] = []common.Node{node("old", common.NodeTypeEntity, "old")}
	c, _ := newTestClient(t, aiReply{text: `{"nodes":[]}`})
	job, _ := NewNodeJob("p1", threeAnnouncements()[:1], c, NewSynchronizer(s))

	events := collect(t, job.Run(context.Background()))
	last := events[len(events)-1]
	if last.Status != JobComplete || last.Data.Count != 0 {
		t.Fatalf("unexpected terminal event %+v", last)
	}
	if len(s.nodes["p1"]) != 1 {
		t.Fatalf("stored nodes must be kept")
	}
}

func TestNodeJobOnSaved(t *testing.T) {
	s := newFakeGraphStore()
	c, _ := newTestClient(t, scenarioReplies()...)
	job, _ := NewNodeJob("p1", threeAnnouncements(), c, NewSynchronizer(s))
	var got int
	job.OnSaved = func(_ context.Context, nodes []common.Node) { got = len(nodes) }

	collect(t, job.Run(context.Background()))
	if got != 3 {
		t.Fatalf("OnSaved saw %d nodes", got)
	}
}

func TestNewNodeJobWithoutAnnouncements(t *testing.T) {
	if _, err := NewNodeJob("p1", nil, nil, nil); !errors.Is(err, ErrNoAnnouncements) {
		t.Fatalf("expected ErrNoAnnouncements, got %v", err)
	}
}

func TestNodeJobIgnoresCancellation(t *testing.T) {
	s := newFakeGraphStore()
	c, _ := newTestClient(t, scenarioReplies()...)
	job, _ := NewNodeJob("p1", threeAnnouncements(), c, NewSynchronizer(s))

	ctx, cancel := context.WithCancel(context.Background())
	events := job.Run(ctx)
	cancel()

	got := collect(t, events)
	if got[len(got)-1].Status != JobComplete {
		t.Fatalf("job must run to completion after cancellation")
	}
}
