package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseShards(t *testing.T) {
	shards, err := ParseShards("100=lstore, 200=dstore(keys),300=lstore(keys)")
	require.NoError(t, err)
	assert.Equal(t, []ServerShard{
		{ShardID: 100, Type: ShardTypeLocalIStore},
		{ShardID: 200, Type: ShardTypeRemoteIStore, KeysOnly: true},
		{ShardID: 300, Type: ShardTypeLocalIStore, KeysOnly: true},
	}, shards)
	assert.Equal(t, "dstore(keys)", shards[1].String())

	cfg := ServerConfig{Shards: shards}
	assert.True(t, cfg.HasRemoteShard())
}

func TestParseShardsErrors(t *testing.T) {
	for _, input := range []string{
		"",
		"100",
		"abc=lstore",
		"100=kv",
		"100=lstore(values)",
		"100=lstore,100=dstore",
	} {
		_, err := ParseShards(input)
		assert.Error(t, err, "input %q", input)
	}
}

func TestReplicaIDFromName(t *testing.T) {
	a := ReplicaIDFromName("node-1")
	assert.Equal(t, a, ReplicaIDFromName("node-1"))
	assert.NotEqual(t, a, ReplicaIDFromName("node-2"))
	assert.NotZero(t, a)
}

func TestParseLogLevel(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "warning", "error"} {
		_, err := ParseLogLevel(level)
		assert.NoError(t, err, level)
	}
	_, err := ParseLogLevel("verbose")
	assert.Error(t, err)
}

func TestDragonboatConfig(t *testing.T) {
	cfg := ServerConfig{
		ReplicaID:      ReplicaIDFromName("node-1"),
		ClusterMembers: map[uint64]string{ReplicaIDFromName("node-1"): "localhost:63001"},
		RTTMillisecond: 100,
		DataDir:        "/tmp/dtrie",
	}
	rc := cfg.ToDragonboatConfig(7)
	assert.Equal(t, uint64(7), rc.ShardID)
	assert.Equal(t, cfg.ReplicaID, rc.ReplicaID)

	nh := cfg.ToNodeHostConfig()
	assert.Equal(t, "localhost:63001", nh.RaftAddress)
}
