package graph

import (
	"context"
	"testing"

	"github.com/finkg/backend/pkg/common"
)

func TestDedupeNodesKeepsFirstRole(t *testing.T) {
	nodes := []common.Node{
		{ID: "a", Type: common.NodeTypeEntity, Value: "甲公司", Key: "acquirer"},
		{ID: "b", Type: common.NodeTypeEvent, Value: "收购", Key: "acquisition"},
		{ID: "a", Type: common.NodeTypeEntity, Value: "甲公司", Key: "guarantor"},
		{ID: "b", Type: common.NodeTypeEvent, Value: "收购", Key: "acquisition"},
	}

	got := DedupeNodes(nodes)
	if len(got) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(got))
	}
	if got[0].ID != "a" || got[0].Key != "acquirer" || got[1].ID != "b" {
		t.Fatalf("unexpected nodes: %+v", got)
	}
}

func TestExtractNodesCollapsesRepeatedEntity(t *testing.T) {
	reply := `{"nodes":[
		{"type":0,"value":"甲公司","key":"acquirer"},
		{"type":0,"value":"甲公司","key":"guarantor"}
	]}`
	c, _ := newTestClient(t, aiReply{text: reply})

	res := c.ExtractNodes(context.Background(), "甲公司收购乙公司并为其提供担保", "p1")
	if len(res.Nodes) != 1 || res.Nodes[0].Key != "acquirer" {
		t.Fatalf("expected one node with the first role, got %+v", res.Nodes)
	}
}

func TestDedupeEdges(t *testing.T) {
	edges := []common.Edge{
		{ID: "e1", From: "a", To: "b", Value: "first"},
		{ID: "e2", From: "b", To: "a"},
		{ID: "e1", From: "a", To: "b", Value: "second"},
	}

	got := DedupeEdges(edges)
	if len(got) != 2 || got[0].Value != "first" || got[1].ID != "e2" {
		t.Fatalf("unexpected edges: %+v", got)
	}
}
