package main

import "github.com/narwhalabci/evm-engine/internal/wire"

// inMemoryCertificateSource is a stand-in for the DAG/consensus layer's
// certificate feed, which is external to this module (see the Non-goals).
// It never produces anything on its own; a real deployment wires the
// engine's channel to whatever local transport carries certificates from
// the consensus process instead of constructing this type.
type inMemoryCertificateSource struct {
	ch chan wire.Certificate
}

func newInMemoryCertificateSource() *inMemoryCertificateSource {
	return &inMemoryCertificateSource{ch: make(chan wire.Certificate)}
}

func (s *inMemoryCertificateSource) Certificates() <-chan wire.Certificate {
	return s.ch
}

// Push feeds a certificate in, for local testing and development only.
func (s *inMemoryCertificateSource) Push(c wire.Certificate) {
	s.ch <- c
}

// Close signals no further certificates will arrive.
func (s *inMemoryCertificateSource) Close() {
	close(s.ch)
}
