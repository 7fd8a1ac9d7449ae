package gossip

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/anthanhphan/gosdk/logger"
	"github.com/hashicorp/memberlist"
)

// Member roles announced in gossip metadata.
const (
	RoleStorage = "storage"
	RoleGateway = "gateway"
)

// Meta is the metadata a process announces to the cluster.
type Meta struct {
	Role       string `json:"role"`
	NodeID     string `json:"node_id,omitempty"`
	Region     string `json:"region,omitempty"`
	ServerPort int    `json:"server_port,omitempty"`
}

// Member is a live cluster member as seen through gossip.
type Member struct {
	Name   string
	Role   string
	NodeID string
	Region string
	Addr   string
}

// EventHandler receives membership changes.
type EventHandler interface {
	MemberJoined(m Member)
	MemberLeft(m Member)
}

// Config configures the gossip adapter.
type Config struct {
	Name     string
	BindAddr string
	BindPort int
	Meta     Meta
}

// GossipAdapter announces the local process and reports membership changes.
type GossipAdapter struct {
	list    *memberlist.Memberlist
	conf    *memberlist.Config
	meta    Meta
	addr    string
	handler EventHandler
}

var (
	_ memberlist.Delegate      = (*GossipAdapter)(nil)
	_ memberlist.EventDelegate = (*GossipAdapter)(nil)
)

// NewGossipAdapter creates the memberlist instance. handler may be nil.
func NewGossipAdapter(cfg Config, handler EventHandler) (*GossipAdapter, error) {
	conf := memberlist.DefaultLANConfig()
	conf.Name = cfg.Name
	conf.BindAddr = cfg.BindAddr
	conf.BindPort = cfg.BindPort
	conf.AdvertisePort = cfg.BindPort
	conf.LogOutput = io.Discard

	adapter := &GossipAdapter{
		conf:    conf,
		meta:    cfg.Meta,
		addr:    cfg.BindAddr,
		handler: handler,
	}

	conf.Events = adapter
	conf.Delegate = adapter

	list, err := memberlist.Create(conf)
	if err != nil {
		return nil, fmt.Errorf("failed to create memberlist: %w", err)
	}
	adapter.list = list
	return adapter, nil
}

// Join joins the cluster using seed nodes.
func (g *GossipAdapter) Join(seeds []string) error {
	if len(seeds) > 0 {
		if _, err := g.list.Join(seeds); err != nil {
			return fmt.Errorf("failed to join cluster: %w", err)
		}
	}
	return nil
}

// JoinWithRetry keeps trying to join until it succeeds or attempts run out.
func (g *GossipAdapter) JoinWithRetry(seeds []string, attempts int, delay time.Duration) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = g.Join(seeds); err == nil {
			return nil
		}
		logger.Warnw("Failed to join cluster, retrying", "attempt", i+1, "error", err.Error())
		time.Sleep(delay)
	}
	return err
}

// Leave gracefully leaves the cluster and shuts memberlist down.
func (g *GossipAdapter) Leave() error {
	if err := g.list.Leave(5 * time.Second); err != nil {
		return err
	}
	return g.list.Shutdown()
}

// NodeMeta returns the local node metadata.
func (g *GossipAdapter) NodeMeta(limit int) []byte {
	data, err := json.Marshal(g.meta)
	if err != nil {
		logger.Warnw("Failed to marshal gossip node meta", "error", err.Error())
		return nil
	}
	if len(data) > limit {
		logger.Warnw("Gossip node meta exceeds limit", "size", len(data), "limit", limit)
		return nil
	}
	return data
}

// NotifyMsg, GetBroadcasts, LocalState, MergeRemoteState are required by Delegate.
func (g *GossipAdapter) NotifyMsg([]byte)                           {}
func (g *GossipAdapter) GetBroadcasts(overhead, limit int) [][]byte { return nil }
func (g *GossipAdapter) LocalState(join bool) []byte                { return nil }
func (g *GossipAdapter) MergeRemoteState(buf []byte, join bool)     {}

// Members returns the current live members.
func (g *GossipAdapter) Members() []Member {
	nodes := g.list.Members()
	out := make([]Member, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, toMember(n))
	}
	return out
}

// LocalMember describes this process.
func (g *GossipAdapter) LocalMember() Member {
	host := g.serverHost()
	addr := host
	if g.meta.ServerPort > 0 {
		addr = net.JoinHostPort(host, strconv.Itoa(g.meta.ServerPort))
	}
	return Member{
		Name:   g.conf.Name,
		Role:   g.meta.Role,
		NodeID: g.meta.NodeID,
		Region: g.meta.Region,
		Addr:   addr,
	}
}

// NotifyJoin is invoked when a node joins.
func (g *GossipAdapter) NotifyJoin(node *memberlist.Node) {
	m := toMember(node)
	logger.Infow("Member joined", "name", m.Name, "role", m.Role, "node_id", m.NodeID, "addr", m.Addr)
	if g.handler != nil {
		g.handler.MemberJoined(m)
	}
}

// NotifyLeave is invoked when a node leaves or is declared dead.
func (g *GossipAdapter) NotifyLeave(node *memberlist.Node) {
	m := toMember(node)
	logger.Infow("Member left", "name", m.Name, "role", m.Role, "node_id", m.NodeID)
	if g.handler != nil {
		g.handler.MemberLeft(m)
	}
}

// NotifyUpdate is invoked when a node's metadata changes.
func (g *GossipAdapter) NotifyUpdate(node *memberlist.Node) {
	g.NotifyJoin(node)
}

func toMember(node *memberlist.Node) Member {
	meta := decodeMeta(node.Meta)
	addr := node.Addr.String()
	if meta.ServerPort > 0 {
		addr = net.JoinHostPort(addr, strconv.Itoa(meta.ServerPort))
	} else {
		addr = net.JoinHostPort(addr, strconv.Itoa(int(node.Port)))
	}
	return Member{
		Name:   node.Name,
		Role:   meta.Role,
		NodeID: meta.NodeID,
		Region: meta.Region,
		Addr:   addr,
	}
}

func decodeMeta(data []byte) Meta {
	var m Meta
	if len(data) == 0 {
		return m
	}
	if err := json.Unmarshal(data, &m); err != nil {
		logger.Warnw("Failed to decode node metadata", "error", err.Error())
		return Meta{}
	}
	return m
}

func (g *GossipAdapter) serverHost() string {
	if g.addr == "" {
		return g.addr
	}
	if ip := net.ParseIP(g.addr); ip == nil || !ip.IsUnspecified() {
		return g.addr
	}

	if g.list == nil || g.list.LocalNode() == nil {
		return g.addr
	}

	adv := g.list.LocalNode().Addr.String()
	if adv == "" {
		return g.addr
	}
	if ip := net.ParseIP(adv); ip != nil && ip.IsUnspecified() {
		return g.addr
	}
	return adv
}
