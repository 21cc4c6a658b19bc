package net

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"skoll/internal/common"
	"skoll/internal/utils"
)

const (
	MAX_RECV_SIZE      = 4 * 1024
	defaultNWorkers    = 10
	defaultConnTimeout = time.Second
)

var (
	ErrImproperConversion = errors.New("improper type conversion")
	ErrClientDoesNotExist = errors.New("client does not exist")
)

// Engine is the order-handling surface the gateway drives. All calls happen
// on the session-handler goroutine, which is the engine's single writer.
type Engine interface {
	Submit(symbol string, ord common.Order) ([]common.Fill, error)
	Cancel(symbol string, id uint64) (common.Order, bool)
	Modify(symbol string, id uint64, newPrice, newQty uint64)
	L2Snapshot(symbol string, depth int) (bids, asks []common.Level, ok bool)
}

// FeedPublisher receives fills and snapshots for market-data fan-out. May
// be nil.
type FeedPublisher interface {
	PublishTrade(symbol string, fill common.Fill)
	PublishSnapshot(symbol string, bids, asks []common.Level)
}

// ClientSession contains relevant information pertaining to an individual
// connected TCP session.
type ClientSession struct {
	conn net.Conn
}

// ClientMessage links a message to the client sending it.
type ClientMessage struct {
	clientAddress string
	message       Message
}

type Server struct {
	address            string
	port               int
	engine             Engine
	feed               FeedPublisher
	pool               utils.WorkerPool
	cancel             context.CancelFunc
	clientSessions     map[string]ClientSession
	clientSessionsLock sync.Mutex
	clientMessages     chan ClientMessage

	// Periodic L2 broadcast; runs on the session-handler goroutine so the
	// engine stays single-writer. Only the session handler touches symbols.
	snapshotInterval time.Duration
	snapshotDepth    int
	symbols          map[string]struct{}
}

func New(address string, port int, engine Engine, feed FeedPublisher) *Server {
	return &Server{
		address:        address,
		port:           port,
		engine:         engine,
		feed:           feed,
		pool:           utils.NewWorkerPool(defaultNWorkers),
		clientSessions: make(map[string]ClientSession),
		clientMessages: make(chan ClientMessage, 1),
		symbols:        make(map[string]struct{}),
	}
}

// EnableSnapshots turns on periodic L2 snapshot broadcasts over the feed for
// every symbol the gateway has seen an order for.
func (s *Server) EnableSnapshots(interval time.Duration, depth int) {
	s.snapshotInterval = interval
	s.snapshotDepth = depth
}

func (s *Server) Shutdown() {
	log.Info().Msg("gateway shutting down")
	s.cancel()
}

func (s *Server) Run(ctx context.Context) {
	defer s.Shutdown()

	// Setup a cancel on the context for future shutdown.
	ctx, s.cancel = context.WithCancel(ctx)
	t, ctx := tomb.WithContext(ctx)

	// Start a tcp listener.
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", fmt.Sprintf("%s:%d", s.address, s.port))
	if err != nil {
		log.Error().Err(err).Msg("unable to start listener")
		return
	}
	defer func() {
		if err := listener.Close(); err != nil {
			log.Error().Err(err).Msg("unable to close listener")
		}
	}()

	// Start the worker pool reading client connections.
	s.pool.Setup(t, s.handleConnection)

	// Start the session handler. Every engine call goes through it, which
	// keeps the books single-writer.
	t.Go(func() error {
		return s.sessionHandler(t)
	})

	log.Info().Str("address", s.address).Int("port", s.port).Msg("gateway running")

	// Start accepting connections.
	for {
		select {
		case <-ctx.Done():
			return
		default:
			conn, err := listener.Accept()
			if err != nil {
				log.Error().Err(err).Msg("error accepting client")
				continue
			}

			log.Info().
				Str("address", conn.RemoteAddr().String()).
				Msg("new client added")
			// Track the session; we expect to maintain a long TCP session.
			s.addClientSession(conn)

			// Pass over the connection to be read from.
			s.pool.AddTask(conn)
		}
	}
}

// sessionHandler drains incoming messages from clients and applies them to
// the engine one at a time. Messages arrive from the pool of workers.
func (s *Server) sessionHandler(t *tomb.Tomb) error {
	var snapshots <-chan time.Time
	if s.feed != nil && s.snapshotInterval > 0 {
		ticker := time.NewTicker(s.snapshotInterval)
		defer ticker.Stop()
		snapshots = ticker.C
	}

	for {
		select {
		case <-t.Dying():
			return nil
		case message := <-s.clientMessages:
			if err := s.handleMessage(message); err != nil {
				log.Error().
					Err(err).
					Str("clientAddress", message.clientAddress).
					Msg("error handling message")
				s.reportError(message.clientAddress, err)
			}
		case <-snapshots:
			for symbol := range s.symbols {
				if bids, asks, ok := s.engine.L2Snapshot(symbol, s.snapshotDepth); ok {
					s.feed.PublishSnapshot(symbol, bids, asks)
				}
			}
		}
	}
}

func (s *Server) handleMessage(message ClientMessage) error {
	switch message.message.GetType() {
	case Heartbeat:
		return nil
	case NewOrder:
		m, ok := message.message.(NewOrderMessage)
		if !ok {
			return ErrInvalidMessageType
		}
		s.symbols[m.Symbol] = struct{}{}
		fills, err := s.engine.Submit(m.Symbol, m.Order())
		if err != nil {
			return err
		}
		for _, fill := range fills {
			if s.feed != nil {
				s.feed.PublishTrade(m.Symbol, fill)
			}
			if err := s.reportExecution(message.clientAddress, m, fill); err != nil {
				log.Error().
					Err(err).
					Str("clientAddress", message.clientAddress).
					Msg("unable to deliver execution report")
			}
		}
	case CancelOrder:
		m, ok := message.message.(CancelOrderMessage)
		if !ok {
			return ErrInvalidMessageType
		}
		removed, found := s.engine.Cancel(m.Symbol, m.OrderID)
		return s.reportCancel(message.clientAddress, m.Symbol, m.OrderID, removed, found)
	case ModifyOrder:
		m, ok := message.message.(ModifyOrderMessage)
		if !ok {
			return ErrInvalidMessageType
		}
		s.engine.Modify(m.Symbol, m.OrderID, m.NewPrice, m.NewQty)
	case Snapshot:
		m, ok := message.message.(SnapshotMessage)
		if !ok {
			return ErrInvalidMessageType
		}
		bids, asks, found := s.engine.L2Snapshot(m.Symbol, int(m.Depth))
		if !found {
			bids, asks = nil, nil
		}
		return s.reportSnapshot(message.clientAddress, m.Symbol, bids, asks)
	default:
		log.Error().
			Int("messageType", int(message.message.GetType())).
			Msg("invalid message type")
		return ErrInvalidMessageType
	}
	return nil
}

func (s *Server) reportExecution(clientAddress string, m NewOrderMessage, fill common.Fill) error {
	report := Report{
		MessageType: ExecutionReport,
		Side:        m.Side,
		Timestamp:   uint64(time.Now().UnixNano()),
		OrderID:     fill.TakerID,
		MakerID:     fill.MakerID,
		Price:       fill.Price,
		Qty:         fill.Qty,
		SymbolLen:   uint8(len(m.Symbol)),
		ExecID:      uuid.New().String(),
		Symbol:      m.Symbol,
	}
	return s.writeToClient(clientAddress, report.Serialize())
}

func (s *Server) reportCancel(clientAddress, symbol string, id uint64, removed common.Order, found bool) error {
	report := Report{
		MessageType: CancelReport,
		Side:        removed.Side,
		Timestamp:   uint64(time.Now().UnixNano()),
		OrderID:     id,
		Price:       removed.Price,
		Qty:         removed.Remaining,
		SymbolLen:   uint8(len(symbol)),
		Symbol:      symbol,
	}
	if found {
		report.Found = 1
	}
	return s.writeToClient(clientAddress, report.Serialize())
}

func (s *Server) reportSnapshot(clientAddress, symbol string, bids, asks []common.Level) error {
	frame := SnapshotFrame{
		Timestamp: uint64(time.Now().UnixNano()),
		Symbol:    symbol,
		Bids:      bids,
		Asks:      asks,
	}
	return s.writeToClient(clientAddress, frame.Serialize())
}

func (s *Server) reportError(clientAddress string, cause error) error {
	errStr := cause.Error()
	report := Report{
		MessageType: ErrorReport,
		Timestamp:   uint64(time.Now().UnixNano()),
		ErrStrLen:   uint16(len(errStr)),
		Err:         errStr,
	}
	return s.writeToClient(clientAddress, report.Serialize())
}

func (s *Server) writeToClient(clientAddress string, frame []byte) error {
	s.clientSessionsLock.Lock()
	defer s.clientSessionsLock.Unlock()

	client, ok := s.clientSessions[clientAddress]
	if !ok {
		return ErrClientDoesNotExist
	}
	if _, err := client.conn.Write(frame); err != nil {
		delete(s.clientSessions, clientAddress)
		return fmt.Errorf("unable to send report: %w", err)
	}
	return nil
}

// handleConnection is a short-lived worker method which reads the next
// message off the connection, parses it and passes it forward to the
// sessionHandler. If the connection dies, the client session is cleaned up.
// Note, any error returned from here is fatal to the pool.
func (s *Server) handleConnection(t *tomb.Tomb, task any) error {
	conn, ok := task.(net.Conn)
	if !ok {
		return ErrImproperConversion
	}

	if err := conn.SetReadDeadline(time.Now().Add(defaultConnTimeout)); err != nil {
		log.Error().
			Str("address", conn.RemoteAddr().String()).
			Err(err).
			Msg("failed setting deadline for connection")
		return nil
	}

	buffer := make([]byte, MAX_RECV_SIZE)
	select {
	case <-t.Dying():
		return nil
	default:
		n, err := conn.Read(buffer)
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				// Idle client; requeue and try again later.
				s.pool.AddTask(conn)
				return nil
			}
			log.Info().
				Str("address", conn.RemoteAddr().String()).
				Msg("client disconnected")
			s.deleteClientSession(conn.RemoteAddr().String())
			conn.Close()
			return nil
		}

		message, err := parseMessage(buffer[:n])
		if err != nil {
			log.Error().
				Err(err).
				Str("address", conn.RemoteAddr().String()).
				Msg("error parsing message")
			s.reportError(conn.RemoteAddr().String(), err)
		} else {
			s.clientMessages <- ClientMessage{
				message:       message,
				clientAddress: conn.RemoteAddr().String(),
			}
		}

		// Push the client connection back to handle the next message.
		s.pool.AddTask(conn)
	}
	return nil
}

// addClientSession is an atomic map add
func (s *Server) addClientSession(conn net.Conn) {
	s.clientSessionsLock.Lock()
	defer s.clientSessionsLock.Unlock()

	s.clientSessions[conn.RemoteAddr().String()] = ClientSession{
		conn: conn,
	}
}

// deleteClientSession is an atomic map remove
func (s *Server) deleteClientSession(address string) {
	s.clientSessionsLock.Lock()
	defer s.clientSessionsLock.Unlock()

	delete(s.clientSessions, address)
}
