package stream

import (
	"context"
	"io"
	"net"
	"sync"
	"time"

	"codeberg.org/mutker/wvasim/internal/errors"
	"codeberg.org/mutker/wvasim/internal/logger"
)

// Server accepts TCP connections and runs one independent session per
// connection. Bytes sent by clients are read and discarded.
type Server struct {
	addr   string
	engine *Engine
	log    logger.Logger

	mu sync.Mutex
	ln net.Listener
	wg sync.WaitGroup
}

func NewServer(addr string, engine *Engine, log logger.Logger) *Server {
	return &Server{
		addr:   addr,
		engine: engine,
		log:    log.With("stream"),
	}
}

// Addr returns the listening address, or nil before the server listens.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// ListenAndServe listens on the configured address and serves until ctx
// is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return errors.New().Wrap(ErrListen, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then closes the
// listener and waits for every session to finish. It returns nil on a
// clean shutdown. Other accept errors are logged and retried with backoff.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stop := context.AfterFunc(ctx, func() {
		ln.Close()
	})
	defer stop()

	s.log.Info().Str("addr", ln.Addr().String()).Msg("Stream server listening")

	var backoff time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				cancel()
				s.wg.Wait()
				s.log.Info().Msg("Stream server stopped")
				return nil
			}

			backoff = nextBackoff(backoff)
			s.log.Warn().
				Err(errors.New().Wrap(ErrAccept, err)).
				Dur("retry_in", backoff).
				Msg("Accept failed")
			// A cancelled wait falls through to the closed listener.
			_ = TimerPacer{}.Wait(ctx, backoff)
			continue
		}
		backoff = 0

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handle(ctx, conn)
		}()
	}
}

func (s *Server) handle(ctx context.Context, conn net.Conn) {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	// Closing the connection unblocks both a pending write and the reader.
	stop := context.AfterFunc(ctx, func() {
		conn.Close()
	})
	defer stop()

	// A clean EOF is only a half-close: the peer may still be reading, so
	// the session runs on until a write fails. Read errors end it at once.
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		if _, err := io.Copy(io.Discard, conn); err != nil {
			cancel(errors.New().Wrap(ErrPeerClosed, err))
		}
	}()

	s.engine.RunSession(ctx, TransportTCP, conn.RemoteAddr().String(), NewLineSink(conn))

	conn.Close()
	<-readerDone
}

const (
	minAcceptBackoff = 5 * time.Millisecond
	maxAcceptBackoff = time.Second
)

func nextBackoff(d time.Duration) time.Duration {
	if d == 0 {
		return minAcceptBackoff
	}
	return min(2*d, maxAcceptBackoff)
}
