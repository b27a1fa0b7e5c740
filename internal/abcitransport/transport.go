// Package abcitransport hosts the ABCI application over a tendermint socket
// server, and builds the socket client connections the execution engine uses
// to drive it. This mirrors the reference implementation's split between an
// app-hosting process and a client process, folded into one binary.
package abcitransport

import (
	"github.com/pkg/errors"
	abciclient "github.com/tendermint/tendermint/abci/client"
	abciserver "github.com/tendermint/tendermint/abci/server"
	abcitypes "github.com/tendermint/tendermint/abci/types"
	"github.com/tendermint/tendermint/libs/log"
	"github.com/tendermint/tendermint/libs/service"
)

// Server hosts app on a single tendermint ABCI socket listener. Tendermint's
// socket server multiplexes arbitrarily many concurrent connections against
// one Application, which is how the four independent consensus/mempool/info/
// snapshot roles are served in parallel without four separate listeners.
type Server struct {
	svc service.Service
}

// StartServer starts the ABCI socket server listening at addr (e.g.
// "tcp://0.0.0.0:26658").
func StartServer(addr string, app abcitypes.Application) (*Server, error) {
	srv := abciserver.NewSocketServer(addr, app)
	srv.SetLogger(log.NewNopLogger())
	if err := srv.Start(); err != nil {
		return nil, errors.Wrap(err, "starting ABCI socket server")
	}
	return &Server{svc: srv}, nil
}

// Stop shuts down the socket server.
func (s *Server) Stop() error {
	return s.svc.Stop()
}

// DialClient opens a socket client connection to an ABCI server at addr. The
// engine opens two of these: one it drives the consensus lifecycle through,
// one reserved for queries, so a long-running query can never stall a
// certificate's BeginBlock/DeliverTx/EndBlock/Commit sequence.
func DialClient(addr string) (abciclient.Client, error) {
	client := abciclient.NewSocketClient(addr, false)
	client.SetLogger(log.NewNopLogger())
	if err := client.Start(); err != nil {
		return nil, errors.Wrap(err, "starting ABCI socket client")
	}
	return client, nil
}
