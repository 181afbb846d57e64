package server

import (
	"context"
	"fmt"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ValentinKolb/dTrie/lib/db"
	"github.com/ValentinKolb/dTrie/lib/store"
	"github.com/ValentinKolb/dTrie/lib/token"
	"github.com/ValentinKolb/dTrie/rpc/client"
	"github.com/ValentinKolb/dTrie/rpc/common"
	"github.com/ValentinKolb/dTrie/rpc/serializer"
	"github.com/ValentinKolb/dTrie/rpc/transport"
	"github.com/ValentinKolb/dTrie/rpc/transport/http"
	"github.com/ValentinKolb/dTrie/rpc/transport/tcp"
	"github.com/ValentinKolb/dTrie/rpc/transport/unix"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const (
	shardData uint64 = 100
	shardKeys uint64 = 200
)

var testShards = []common.ServerShard{
	{ShardID: shardData, Type: common.ShardTypeLocalIStore},
	{ShardID: shardKeys, Type: common.ShardTypeLocalIStore, KeysOnly: true},
}

type testTransport struct {
	name     string
	endpoint func(t *testing.T) string
	server   func() transport.IRPCServerTransport
	client   func() transport.IRPCClientTransport
}

var testTransports = []testTransport{
	{
		name:     "tcp",
		endpoint: freeTCPAddr,
		server:   tcp.NewTCPServerTransport,
		client:   tcp.NewTCPClientTransport,
	},
	{
		name: "unix",
		endpoint: func(t *testing.T) string {
			return filepath.Join(t.TempDir(), "dtrie.sock")
		},
		server: unix.NewUnixDefaultServerTransport,
		client: unix.NewUnixClientTransport,
	},
	{
		name:     "http",
		endpoint: freeTCPAddr,
		server:   http.NewHttpServerTransport,
		client:   http.NewHttpClientTransport,
	},
}

func freeTCPAddr(t *testing.T) string {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

// testEnv is a running server plus a client config pointing to it
type testEnv struct {
	t          *testing.T
	tr         testTransport
	serializer serializer.IRPCSerializer
	config     common.ClientConfig
}

// startServer starts a server on a fresh endpoint and registers its shutdown as cleanup
func startServer(t *testing.T, tr testTransport, ser serializer.IRPCSerializer) *testEnv {
	t.Helper()

	endpoint := tr.endpoint(t)
	srv := NewRPCServer(common.ServerConfig{
		Shards:        testShards,
		TimeoutSecond: 5,
		Transport: common.ServerTransportConfig{
			Endpoint:       endpoint,
			WorkersPerConn: 4,
		},
		LogLevel: "error",
	}, tr.server(), ser)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve()
	}()

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		assert.NoError(t, srv.Shutdown(ctx))
		assert.NoError(t, <-errCh)
	})

	env := &testEnv{
		t:          t,
		tr:         tr,
		serializer: ser,
		config: common.ClientConfig{
			TimeoutSecond: 5,
			Transport: common.ClientTransportConfig{
				Endpoints:              []string{endpoint},
				RetryCount:             1,
				ConnectionsPerEndpoint: 1,
			},
		},
	}

	// wait until the server answers
	require.Eventually(t, func() bool {
		s, err := client.NewRPCStore(shardData, env.config, tr.client(), ser)
		if err != nil {
			return false
		}
		defer s.Close()
		_, err = s.GetDBInfo()
		return err == nil
	}, 5*time.Second, 20*time.Millisecond, "server did not come up")

	return env
}

// connect returns a client for the shard that is closed when the test ends
func (e *testEnv) connect(shardId uint64) store.IStore {
	e.t.Helper()
	s, err := client.NewRPCStore(shardId, e.config, e.tr.client(), e.serializer)
	require.NoError(e.t, err)
	e.t.Cleanup(func() {
		s.Close()
	})
	return s
}

// collect drains a cursor
func collect(t *testing.T, cur db.Cursor) []db.Entry {
	t.Helper()
	defer cur.Close()
	var entries []db.Entry
	for cur.Next() {
		entries = append(entries, cur.Entry())
	}
	require.NoError(t, cur.Err())
	return entries
}

func entryPaths(entries []db.Entry) []string {
	paths := make([]string, len(entries))
	for i, e := range entries {
		paths[i] = e.Path.String()
	}
	return paths
}

var (
	edgeAB = token.Atoms("edge", "a", "b")
	edgeAC = token.Atoms("edge", "a", "c")
	edgeBB = token.Atoms("edge", "b", "b")
	nodeA  = token.Atoms("node", "a")
)

func TestServer(t *testing.T) {
	for _, tr := range testTransports {
		t.Run(tr.name, func(t *testing.T) {
			env := startServer(t, tr, serializer.NewBinarySerializer())
			runStoreTests(t, env)
		})
	}
}

func TestServerSerializers(t *testing.T) {
	serializers := map[string]serializer.IRPCSerializer{
		"json": serializer.NewJSONSerializer(),
		"gob":  serializer.NewGOBSerializer(),
	}
	for name, ser := range serializers {
		t.Run(name, func(t *testing.T) {
			env := startServer(t, testTransports[0], ser)
			runStoreTests(t, env)
		})
	}
}

func runStoreTests(t *testing.T, env *testEnv) {
	s := env.connect(shardData)

	t.Run("Writes", func(t *testing.T) {
		out, err := s.Insert(edgeAB, []byte("1"))
		require.NoError(t, err)
		assert.Equal(t, db.OutcomeInserted, out)

		out, err = s.Insert(edgeAB, []byte("2"))
		require.NoError(t, err)
		assert.Equal(t, db.OutcomeReplaced, out)

		value, found, err := s.Lookup(edgeAB)
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, []byte("2"), value)

		out, err = s.Delete(edgeAB)
		require.NoError(t, err)
		assert.Equal(t, db.OutcomeRemoved, out)

		out, err = s.Delete(edgeAB)
		require.NoError(t, err)
		assert.Equal(t, db.OutcomeNotFound, out)

		_, found, err = s.Lookup(edgeAB)
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("Queries", func(t *testing.T) {
		for _, p := range []token.Path{edgeAB, edgeAC, edgeBB, nodeA} {
			_, err := s.Insert(p, []byte(p.String()))
			require.NoError(t, err)
		}

		cur, err := s.Prefix(context.Background(), token.Atoms("edge", "a"))
		require.NoError(t, err)
		entries := collect(t, cur)
		assert.ElementsMatch(t, []string{edgeAB.String(), edgeAC.String()}, entryPaths(entries))
		for _, e := range entries {
			assert.Equal(t, []byte(e.Path.String()), e.Value)
			assert.Nil(t, e.Bindings)
		}

		cur, err = s.Prefix(context.Background(), token.Atoms("missing"))
		require.NoError(t, err)
		assert.Empty(t, collect(t, cur))

		cur, err = s.Explore(context.Background(), token.Atoms("edge"))
		require.NoError(t, err)
		entries = collect(t, cur)
		assert.Equal(t, []string{"[edge a]", "[edge b]"}, entryPaths(entries))
		for _, e := range entries {
			assert.Empty(t, e.Value)
		}

		cur, err = s.Explore(context.Background(), token.Atoms("edge", "a"))
		require.NoError(t, err)
		entries = collect(t, cur)
		assert.Equal(t, []string{edgeAB.String(), edgeAC.String()}, entryPaths(entries))
		assert.Equal(t, []byte(edgeAB.String()), entries[0].Value)

		// (edge $x $x) only matches paths with equal endpoints
		cur, err = s.Match(context.Background(), token.Pattern{
			token.Lit(token.Atom("edge")), token.Var("x"), token.Var("x"),
		})
		require.NoError(t, err)
		entries = collect(t, cur)
		require.Len(t, entries, 1)
		assert.True(t, edgeBB.Equal(entries[0].Path))
		assert.True(t, token.Bindings{"x": token.Atoms("b")}.Equal(entries[0].Bindings))

		cur, err = s.Match(context.Background(), token.Pattern{
			token.Lit(token.Atom("edge")), token.Many("rest"),
		})
		require.NoError(t, err)
		entries = collect(t, cur)
		assert.ElementsMatch(t, []string{edgeAB.String(), edgeAC.String(), edgeBB.String()}, entryPaths(entries))
		for _, e := range entries {
			assert.True(t, e.Path[1:].Equal(e.Bindings["rest"]), "binding of %s", e.Path)
		}

		info, err := s.GetDBInfo()
		require.NoError(t, err)
		assert.Equal(t, 4, info.Entries)

		removed, err := s.Clear()
		require.NoError(t, err)
		assert.Equal(t, 4, removed)

		info, err = s.GetDBInfo()
		require.NoError(t, err)
		assert.Equal(t, 0, info.Entries)
	})

	t.Run("Errors", func(t *testing.T) {
		_, err := s.Match(context.Background(), token.Pattern{token.Lit(token.Symbol{})})
		require.Error(t, err)
		assert.ErrorIs(t, err, token.ErrMalformed)

		var se *store.Error
		require.ErrorAs(t, err, &se)
		assert.Equal(t, store.RetCMalformedRequest, se.Code)

		unknown := env.connect(999)
		_, _, err = unknown.Lookup(nodeA)
		require.ErrorAs(t, err, &se)
		assert.Equal(t, store.RetCMalformedRequest, se.Code)
	})

	t.Run("KeysOnly", func(t *testing.T) {
		keys := env.connect(shardKeys)

		out, err := keys.Insert(nodeA, nil)
		require.NoError(t, err)
		assert.Equal(t, db.OutcomeInserted, out)

		_, err = keys.Insert(edgeAB, []byte("payload"))
		require.ErrorAs(t, err, new(*store.Error))
		assert.ErrorIs(t, err, token.ErrMalformed)

		_, found, err := keys.Lookup(nodeA)
		require.NoError(t, err)
		assert.True(t, found)

		// the spaces of one server are independent
		_, found, err = s.Lookup(nodeA)
		require.NoError(t, err)
		assert.False(t, found)

		_, err = keys.Clear()
		require.NoError(t, err)
	})
}

func TestStreamCancellation(t *testing.T) {
	for _, tr := range testTransports[:2] {
		t.Run(tr.name, func(t *testing.T) {
			env := startServer(t, tr, serializer.NewBinarySerializer())
			s := env.connect(shardData)

			const n = 2000
			for i := 0; i < n; i++ {
				_, err := s.Insert(token.P(token.Atom("n"), token.Int(int64(i))), nil)
				require.NoError(t, err)
			}
			prefix := token.Atoms("n")

			t.Run("Close", func(t *testing.T) {
				cur, err := s.Prefix(context.Background(), prefix)
				require.NoError(t, err)
				require.True(t, cur.Next())
				require.NoError(t, cur.Close())
				assert.False(t, cur.Next())

				require.Eventually(t, func() bool {
					return openStreams.Get() == 0
				}, 5*time.Second, 10*time.Millisecond, "stream was not stopped on the server")

				// the connection is still usable
				_, found, err := s.Lookup(token.P(token.Atom("n"), token.Int(7)))
				require.NoError(t, err)
				assert.True(t, found)
			})

			t.Run("Context", func(t *testing.T) {
				ctx, cancel := context.WithCancel(context.Background())
				cur, err := s.Prefix(ctx, prefix)
				require.NoError(t, err)
				defer cur.Close()

				require.True(t, cur.Next())
				cancel()
				for cur.Next() {
				}
				assert.ErrorIs(t, cur.Err(), context.Canceled)
			})

			t.Run("Complete", func(t *testing.T) {
				cur, err := s.Prefix(context.Background(), prefix)
				require.NoError(t, err)
				assert.Len(t, collect(t, cur), n)
			})

			t.Run("Concurrent", func(t *testing.T) {
				errCh := make(chan error, 8)
				for w := 0; w < 8; w++ {
					go func(w int) {
						cur, err := s.Match(context.Background(), token.Pattern{
							token.Lit(token.Atom("n")), token.Lit(token.Int(int64(w))),
						})
						if err != nil {
							errCh <- err
							return
						}
						defer cur.Close()
						count := 0
						for cur.Next() {
							count++
						}
						if err := cur.Err(); err != nil {
							errCh <- err
							return
						}
						if count != 1 {
							errCh <- fmt.Errorf("worker %d: got %d matches", w, count)
							return
						}
						errCh <- nil
					}(w)
				}
				for w := 0; w < 8; w++ {
					assert.NoError(t, <-errCh)
				}
			})
		})
	}
}
