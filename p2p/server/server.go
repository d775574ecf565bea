// Package server implements a request/response protocol on top of libp2p
// streams. Requests and responses are varint length prefixed; a stream
// handler may instead write an arbitrary sequence of frames, which the sync
// protocol uses to deliver chunked payloads.
package server

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
	"github.com/multiformats/go-varint"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/homestead-network/go-homestead/codec"
)

var (
	// ErrNotConnected is returned when the peer is not connected.
	ErrNotConnected = errors.New("peer is not connected")
)

// ServerError represents an error returned by the remote peer.
type ServerError struct {
	msg string
}

// NewServerError wraps a message in a ServerError.
func NewServerError(msg string) *ServerError {
	return &ServerError{msg: msg}
}

func (*ServerError) Is(target error) bool {
	_, ok := target.(*ServerError)
	return ok
}

func (err *ServerError) Error() string {
	return fmt.Sprintf("peer error: %s", err.msg)
}

// Response is a unary server response.
type Response struct {
	Data  []byte
	Error string
}

// Handler is a unary request handler.
type Handler func(context.Context, []byte) ([]byte, error)

// StreamHandler writes response frames to the stream directly instead of
// buffering one serialized response.
type StreamHandler func(context.Context, []byte, io.ReadWriter) error

// StreamRequestCallback consumes the response frames of a streamed request.
type StreamRequestCallback func(context.Context, io.ReadWriter) error

// WrapHandler exposes a unary handler as a StreamHandler. Handler errors are
// delivered to the client inside the response frame.
func WrapHandler(handler Handler) StreamHandler {
	return func(ctx context.Context, req []byte, stream io.ReadWriter) error {
		var resp Response
		data, err := handler(ctx, req)
		if err != nil {
			resp.Error = err.Error()
		} else {
			resp.Data = data
		}
		wr := bufio.NewWriter(stream)
		if _, err := codec.EncodeTo(wr, &resp); err != nil {
			return fmt.Errorf("encode response: %w", err)
		}
		if err := wr.Flush(); err != nil {
			return fmt.Errorf("flush response: %w", err)
		}
		return nil
	}
}

// Host is a subset of libp2p host.Host used by the server.
type Host interface {
	SetStreamHandler(protocol.ID, network.StreamHandler)
	NewStream(context.Context, peer.ID, ...protocol.ID) (network.Stream, error)
	Network() network.Network
}

// Opt configures a Server.
type Opt func(s *Server)

// WithTimeout configures the stream timeout.
func WithTimeout(timeout time.Duration) Opt {
	return func(s *Server) {
		s.timeout = timeout
	}
}

// WithLogger configures the logger.
func WithLogger(logger *zap.Logger) Opt {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithRequestSizeLimit bounds the size of accepted requests.
func WithRequestSizeLimit(limit int) Opt {
	return func(s *Server) {
		s.requestLimit = limit
	}
}

// WithQueueSize bounds the number of requests waiting to be served.
// Streams beyond the bound are closed immediately.
func WithQueueSize(size int) Opt {
	return func(s *Server) {
		s.queueSize = size
	}
}

// WithRequestsPerInterval configures the server side rate limit.
func WithRequestsPerInterval(n int, interval time.Duration) Opt {
	return func(s *Server) {
		s.requestsPerInterval = n
		s.interval = interval
	}
}

// Server serves a single protocol.
type Server struct {
	logger              *zap.Logger
	protocol            string
	handler             StreamHandler
	timeout             time.Duration
	requestLimit        int
	queueSize           int
	requestsPerInterval int
	interval            time.Duration

	h Host
}

// New creates a server for the handler.
func New(h Host, proto string, handler StreamHandler, opts ...Opt) *Server {
	srv := &Server{
		logger:              zap.NewNop(),
		protocol:            proto,
		handler:             handler,
		h:                   h,
		timeout:             time.Minute,
		requestLimit:        10240,
		queueSize:           100,
		requestsPerInterval: 100,
		interval:            time.Second,
	}
	for _, opt := range opts {
		opt(srv)
	}
	return srv
}

// Run accepts streams until the context is canceled.
func (s *Server) Run(ctx context.Context) error {
	limit := rate.NewLimiter(rate.Every(s.interval/time.Duration(s.requestsPerInterval)), s.requestsPerInterval)
	queue := make(chan network.Stream, s.queueSize)
	s.h.SetStreamHandler(protocol.ID(s.protocol), func(stream network.Stream) {
		select {
		case queue <- stream:
		default:
			stream.Close()
		}
	})

	var eg errgroup.Group
	eg.SetLimit(s.queueSize)
	for {
		select {
		case <-ctx.Done():
			eg.Wait()
			return ctx.Err()
		case stream := <-queue:
			if err := limit.Wait(ctx); err != nil {
				eg.Wait()
				return nil
			}
			eg.Go(func() error {
				s.serve(ctx, stream)
				return nil
			})
		}
	}
}

func (s *Server) serve(ctx context.Context, stream network.Stream) {
	defer stream.Close()
	_ = stream.SetDeadline(time.Now().Add(s.timeout))
	rd := bufio.NewReader(stream)
	size, err := varint.ReadUvarint(rd)
	if err != nil {
		s.logger.Debug("initial read failed",
			zap.String("protocol", s.protocol),
			zap.Stringer("peer", stream.Conn().RemotePeer()),
			zap.Error(err),
		)
		return
	}
	if size > uint64(s.requestLimit) {
		s.logger.Warn("request limit overflow",
			zap.String("protocol", s.protocol),
			zap.Stringer("peer", stream.Conn().RemotePeer()),
			zap.Uint64("size", size),
			zap.Int("limit", s.requestLimit),
		)
		return
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(rd, buf); err != nil {
		s.logger.Debug("error reading request",
			zap.String("protocol", s.protocol),
			zap.Stringer("peer", stream.Conn().RemotePeer()),
			zap.Error(err),
		)
		return
	}
	if err := s.handler(ctx, buf, stream); err != nil {
		s.logger.Debug("handler reported error",
			zap.String("protocol", s.protocol),
			zap.Stringer("peer", stream.Conn().RemotePeer()),
			zap.Error(err),
		)
	}
}

// Request sends a unary request to the peer and returns the response data.
func (s *Server) Request(ctx context.Context, pid peer.ID, req []byte) ([]byte, error) {
	var resp Response
	err := s.StreamRequest(ctx, pid, req, func(ctx context.Context, stream io.ReadWriter) error {
		rd := bufio.NewReader(stream)
		if _, err := codec.DecodeFrom(rd, &resp); err != nil {
			return fmt.Errorf("peer %s: %w", pid, err)
		}
		if resp.Error != "" {
			return NewServerError(resp.Error)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// StreamRequest sends a request to the peer and hands the stream to the
// callback to consume the response frames.
func (s *Server) StreamRequest(ctx context.Context, pid peer.ID, req []byte, callback StreamRequestCallback) error {
	if len(req) > s.requestLimit {
		return fmt.Errorf("request length %d over limit %d", len(req), s.requestLimit)
	}
	if s.h.Network().Connectedness(pid) != network.Connected {
		return fmt.Errorf("%w: %s", ErrNotConnected, pid)
	}
	stream, err := s.h.NewStream(network.WithNoDial(ctx, "existing connection"), pid, protocol.ID(s.protocol))
	if err != nil {
		return fmt.Errorf("open stream to %s: %w", pid, err)
	}
	defer stream.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = stream.SetDeadline(deadline)
	} else {
		_ = stream.SetDeadline(time.Now().Add(s.timeout))
	}

	wr := bufio.NewWriter(stream)
	sz := make([]byte, binary.MaxVarintLen64)
	n := binary.PutUvarint(sz, uint64(len(req)))
	if _, err := wr.Write(sz[:n]); err != nil {
		return fmt.Errorf("peer %s: %w", pid, err)
	}
	if _, err := wr.Write(req); err != nil {
		return fmt.Errorf("peer %s: %w", pid, err)
	}
	if err := wr.Flush(); err != nil {
		return fmt.Errorf("peer %s: %w", pid, err)
	}
	return callback(ctx, stream)
}
