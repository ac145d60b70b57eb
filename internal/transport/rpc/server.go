// Package rpc exposes session controls over JSON-RPC for local tooling.
package rpc

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"

	"github.com/xiaot623/gogo/livecoach/internal/domain"
	"github.com/xiaot623/gogo/livecoach/internal/service"
)

const callTimeout = 30 * time.Second

// Server exposes the Coach RPC service.
type Server struct {
	listener  net.Listener
	rpcServer *rpc.Server
	done      chan struct{}
}

// NewServer creates a new RPC server bound to the coaching service.
func NewServer(svc *service.Service) (*Server, error) {
	rpcServer := rpc.NewServer()
	handler := &Handler{service: svc}
	if err := rpcServer.RegisterName("Coach", handler); err != nil {
		return nil, fmt.Errorf("register rpc handler: %w", err)
	}

	return &Server{
		rpcServer: rpcServer,
		done:      make(chan struct{}),
	}, nil
}

// Start begins accepting RPC connections on the given address.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.listener = ln

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				close(s.done)
				return nil
			}
			log.Printf("RPC accept error: %v", err)
			continue
		}

		go s.ServeConn(conn)
	}
}

// ServeConn serves JSON-RPC on a single connection until it closes.
func (s *Server) ServeConn(conn net.Conn) {
	s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(conn))
}

// Shutdown stops accepting new RPC connections.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.listener == nil {
		return nil
	}

	if err := s.listener.Close(); err != nil {
		return err
	}

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Handler implements the Coach RPC methods.
type Handler struct {
	service *service.Service
}

// StartSessionArgs starts a session for a user.
type StartSessionArgs struct {
	UserID  string                     `json:"user_id"`
	Request domain.StartSessionRequest `json:"request"`
}

// UserArgs identifies the user whose live session is addressed.
type UserArgs struct {
	UserID string `json:"user_id"`
}

// ItemArgs addresses a suggestion or feedback event of a user's live session.
type ItemArgs struct {
	UserID string `json:"user_id"`
	ID     string `json:"id"`
}

// StopSessionResponse carries the completed session and a failed final flush.
type StopSessionResponse struct {
	Session    domain.Session `json:"session"`
	FlushError string         `json:"flush_error,omitempty"`
}

func requireUser(userID string) error {
	if userID == "" {
		return errors.New("user_id is required")
	}
	return nil
}

// StartSession starts a live session.
func (h *Handler) StartSession(args *StartSessionArgs, resp *domain.Session) error {
	if args == nil {
		return errors.New("start session request is required")
	}
	if err := requireUser(args.UserID); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	session, err := h.service.StartSession(ctx, args.UserID, args.Request)
	if err != nil {
		return err
	}
	*resp = session
	return nil
}

// StopSession stops the live session. A failed final flush is reported in
// the response rather than as an error since the session did complete.
func (h *Handler) StopSession(args *UserArgs, resp *StopSessionResponse) error {
	if args == nil {
		return errors.New("stop session request is required")
	}
	if err := requireUser(args.UserID); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	session, err := h.service.StopSession(ctx, args.UserID)
	if err != nil && session.ID == "" {
		return err
	}
	resp.Session = session
	if err != nil {
		resp.FlushError = err.Error()
	}
	return nil
}

// DismissFeedback dismisses a feedback event.
func (h *Handler) DismissFeedback(args *ItemArgs, resp *domain.FeedbackEvent) error {
	if args == nil || args.ID == "" {
		return errors.New("feedback id is required")
	}
	if err := requireUser(args.UserID); err != nil {
		return err
	}
	ev, err := h.service.DismissFeedback(args.UserID, args.ID)
	if err != nil {
		return err
	}
	*resp = ev
	return nil
}

// MarkSuggestionUsed marks a suggestion as used.
func (h *Handler) MarkSuggestionUsed(args *ItemArgs, resp *domain.Suggestion) error {
	if args == nil || args.ID == "" {
		return errors.New("suggestion id is required")
	}
	if err := requireUser(args.UserID); err != nil {
		return err
	}
	sg, err := h.service.MarkSuggestionUsed(args.UserID, args.ID)
	if err != nil {
		return err
	}
	*resp = sg
	return nil
}

// Snapshot returns the state of the live session.
func (h *Handler) Snapshot(args *UserArgs, resp *domain.SessionSnapshot) error {
	if args == nil {
		return errors.New("snapshot request is required")
	}
	if err := requireUser(args.UserID); err != nil {
		return err
	}
	snap, err := h.service.Snapshot(args.UserID)
	if err != nil {
		return err
	}
	*resp = snap
	return nil
}
