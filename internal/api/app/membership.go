package app

import (
	"github.com/anthanhphan/go-chunk-transfer/pkg/gossip"
	"github.com/anthanhphan/gosdk/logger"
)

// reachabilitySink is the part of the node registry gossip updates.
type reachabilitySink interface {
	SetReachable(id string, reachable bool)
}

// membershipObserver turns storage daemon join/leave events into node reachability.
type membershipObserver struct {
	sink reachabilitySink
}

var _ gossip.EventHandler = (*membershipObserver)(nil)

func newMembershipObserver(sink reachabilitySink) *membershipObserver {
	return &membershipObserver{sink: sink}
}

func (o *membershipObserver) MemberJoined(m gossip.Member) {
	if m.Role != gossip.RoleStorage || m.NodeID == "" {
		return
	}
	o.sink.SetReachable(m.NodeID, true)
}

func (o *membershipObserver) MemberLeft(m gossip.Member) {
	if m.Role != gossip.RoleStorage || m.NodeID == "" {
		return
	}
	logger.Warnw("Storage node left the cluster, excluding it from placement", "node", m.NodeID, "addr", m.Addr)
	o.sink.SetReachable(m.NodeID, false)
}
