package domain

// NodeStatus describes whether a storage node accepts new placements.
type NodeStatus string

const (
	NodeStatusActive      NodeStatus = "active"
	NodeStatusMaintenance NodeStatus = "maintenance"
	NodeStatusOffline     NodeStatus = "offline"
)

// Backend types understood by the object store pool.
const (
	BackendS3     = "s3"
	BackendLocal  = "local"
	BackendRemote = "remote"
)

// StorageNode describes one physical object storage backend.
type StorageNode struct {
	ID                string      `json:"id" yaml:"id"`
	Region            string      `json:"region" yaml:"region"`
	Bucket            string      `json:"bucket" yaml:"bucket"`
	Status            NodeStatus  `json:"status" yaml:"status"`
	ReplicationFactor int         `json:"replication_factor" yaml:"replication_factor"`
	Backend           BackendSpec `json:"backend" yaml:"backend"`

	// Load is advisory and process-local unless a shared load counter is configured.
	Load int64 `json:"load" yaml:"-"`
}

// BackendSpec carries the connection settings for a node backend.
type BackendSpec struct {
	Type         string `json:"type" yaml:"type"`
	Endpoint     string `json:"endpoint" yaml:"endpoint"`
	AccessKey    string `json:"access_key" yaml:"access_key"`
	SecretKey    string `json:"secret_key" yaml:"secret_key"`
	UsePathStyle bool   `json:"use_path_style" yaml:"use_path_style"`
	DataDir      string `json:"data_dir" yaml:"data_dir"`
	Addr         string `json:"addr" yaml:"addr"`
}

// IsActive reports whether the node is eligible for new chunk placement.
func (n StorageNode) IsActive() bool {
	return n.Status == NodeStatusActive
}
