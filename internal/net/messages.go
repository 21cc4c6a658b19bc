package net

import (
	"encoding/binary"
	"errors"

	"skoll/internal/common"
)

var (
	ErrInvalidMessageType = errors.New("invalid message type")
	ErrMessageTooShort    = errors.New("message too short")
)

type MessageType int

const (
	Heartbeat MessageType = iota
	NewOrder
	CancelOrder
	ModifyOrder
	Snapshot
)

type ReportMessageType int

const (
	ExecutionReport ReportMessageType = iota
	CancelReport
	SnapshotReport
	ErrorReport
)

type Message interface {
	GetType() MessageType
}

// Message format constants. All integers are big-endian; symbols are
// length-prefixed UTF-8.
const (
	BaseMessageHeaderLen        = 2
	NewOrderMessageHeaderLen    = 1 + 1 + 8 + 8 + 8 + 8 + 1
	CancelOrderMessageHeaderLen = 8 + 1
	ModifyOrderMessageHeaderLen = 8 + 8 + 8 + 1
	SnapshotMessageHeaderLen    = 1 + 1
)

// Generic message type.
type BaseMessage struct {
	TypeOf MessageType // 2 bytes
}

func (m BaseMessage) GetType() MessageType {
	return m.TypeOf
}

func parseMessage(msg []byte) (Message, error) {
	if len(msg) < BaseMessageHeaderLen {
		return BaseMessage{}, ErrMessageTooShort
	}

	typeOf := MessageType(binary.BigEndian.Uint16(msg[0:2]))
	msg = msg[2:]
	switch typeOf {
	case Heartbeat:
		return BaseMessage{TypeOf: Heartbeat}, nil
	case NewOrder:
		return parseNewOrder(msg)
	case CancelOrder:
		return parseCancelOrder(msg)
	case ModifyOrder:
		return parseModifyOrder(msg)
	case Snapshot:
		return parseSnapshot(msg)
	default:
		return BaseMessage{}, ErrInvalidMessageType
	}
}

type NewOrderMessage struct {
	BaseMessage
	OrderType common.OrderType // 1 byte
	Side      common.Side      // 1 byte
	OrderID   uint64           // 8 bytes
	UserID    uint64           // 8 bytes
	Price     uint64           // 8 bytes
	Qty       uint64           // 8 bytes
	SymbolLen uint8            // 1 byte
	Symbol    string           // n bytes
}

func (m NewOrderMessage) Order() common.Order {
	return common.Order{
		ID:     m.OrderID,
		UserID: m.UserID,
		Type:   m.OrderType,
		Side:   m.Side,
		Price:  m.Price,
		Qty:    m.Qty,
	}
}

func parseNewOrder(msg []byte) (NewOrderMessage, error) {
	if len(msg) < NewOrderMessageHeaderLen {
		return NewOrderMessage{}, ErrMessageTooShort
	}
	m := NewOrderMessage{BaseMessage: BaseMessage{TypeOf: NewOrder}}

	m.OrderType = common.OrderType(msg[0])
	m.Side = common.Side(msg[1])
	m.OrderID = binary.BigEndian.Uint64(msg[2:10])
	m.UserID = binary.BigEndian.Uint64(msg[10:18])
	m.Price = binary.BigEndian.Uint64(msg[18:26])
	m.Qty = binary.BigEndian.Uint64(msg[26:34])
	m.SymbolLen = msg[34]

	if len(msg) < NewOrderMessageHeaderLen+int(m.SymbolLen) {
		return NewOrderMessage{}, ErrMessageTooShort
	}
	m.Symbol = string(msg[35 : 35+m.SymbolLen])

	return m, nil
}

type CancelOrderMessage struct {
	BaseMessage
	OrderID   uint64 // 8 bytes
	SymbolLen uint8  // 1 byte
	Symbol    string // n bytes
}

func parseCancelOrder(msg []byte) (CancelOrderMessage, error) {
	if len(msg) < CancelOrderMessageHeaderLen {
		return CancelOrderMessage{}, ErrMessageTooShort
	}
	m := CancelOrderMessage{BaseMessage: BaseMessage{TypeOf: CancelOrder}}

	m.OrderID = binary.BigEndian.Uint64(msg[0:8])
	m.SymbolLen = msg[8]

	if len(msg) < CancelOrderMessageHeaderLen+int(m.SymbolLen) {
		return CancelOrderMessage{}, ErrMessageTooShort
	}
	m.Symbol = string(msg[9 : 9+m.SymbolLen])

	return m, nil
}

type ModifyOrderMessage struct {
	BaseMessage
	OrderID   uint64 // 8 bytes
	NewPrice  uint64 // 8 bytes, zero = unchanged
	NewQty    uint64 // 8 bytes, zero = unchanged
	SymbolLen uint8  // 1 byte
	Symbol    string // n bytes
}

func parseModifyOrder(msg []byte) (ModifyOrderMessage, error) {
	if len(msg) < ModifyOrderMessageHeaderLen {
		return ModifyOrderMessage{}, ErrMessageTooShort
	}
	m := ModifyOrderMessage{BaseMessage: BaseMessage{TypeOf: ModifyOrder}}

	m.OrderID = binary.BigEndian.Uint64(msg[0:8])
	m.NewPrice = binary.BigEndian.Uint64(msg[8:16])
	m.NewQty = binary.BigEndian.Uint64(msg[16:24])
	m.SymbolLen = msg[24]

	if len(msg) < ModifyOrderMessageHeaderLen+int(m.SymbolLen) {
		return ModifyOrderMessage{}, ErrMessageTooShort
	}
	m.Symbol = string(msg[25 : 25+m.SymbolLen])

	return m, nil
}

type SnapshotMessage struct {
	BaseMessage
	Depth     uint8  // 1 byte
	SymbolLen uint8  // 1 byte
	Symbol    string // n bytes
}

func parseSnapshot(msg []byte) (SnapshotMessage, error) {
	if len(msg) < SnapshotMessageHeaderLen {
		return SnapshotMessage{}, ErrMessageTooShort
	}
	m := SnapshotMessage{BaseMessage: BaseMessage{TypeOf: Snapshot}}

	m.Depth = msg[0]
	m.SymbolLen = msg[1]

	if len(msg) < SnapshotMessageHeaderLen+int(m.SymbolLen) {
		return SnapshotMessage{}, ErrMessageTooShort
	}
	m.Symbol = string(msg[2 : 2+m.SymbolLen])

	return m, nil
}

// Report is the outbound frame for execution and cancel confirmations and
// for error replies. ExecID carries a uuid string on execution reports.
type Report struct {
	MessageType ReportMessageType // 1 byte
	Side        common.Side       // 1 byte
	Found       uint8             // 1 byte, cancel reports only
	Timestamp   uint64            // 8 bytes
	OrderID     uint64            // 8 bytes
	MakerID     uint64            // 8 bytes
	Price       uint64            // 8 bytes
	Qty         uint64            // 8 bytes
	ErrStrLen   uint16            // 2 bytes
	SymbolLen   uint8             // 1 byte
	ExecID      string            // 36 bytes, zero-padded
	Err         string            // n bytes
	Symbol      string            // n bytes
}

const execIDLen = 36

const ReportFixedHeaderLen = 1 + 1 + 1 + 8 + 8 + 8 + 8 + 8 + 2 + 1 + execIDLen

// Serialize converts the report to be sent on the wire.
func (r *Report) Serialize() []byte {
	buf := make([]byte, ReportFixedHeaderLen+len(r.Err)+len(r.Symbol))
	buf[0] = byte(r.MessageType)
	buf[1] = byte(r.Side)
	buf[2] = r.Found
	binary.BigEndian.PutUint64(buf[3:11], r.Timestamp)
	binary.BigEndian.PutUint64(buf[11:19], r.OrderID)
	binary.BigEndian.PutUint64(buf[19:27], r.MakerID)
	binary.BigEndian.PutUint64(buf[27:35], r.Price)
	binary.BigEndian.PutUint64(buf[35:43], r.Qty)
	binary.BigEndian.PutUint16(buf[43:45], r.ErrStrLen)
	buf[45] = r.SymbolLen

	copy(buf[46:46+execIDLen], r.ExecID)

	offset := ReportFixedHeaderLen
	copy(buf[offset:], r.Err)
	offset += len(r.Err)
	copy(buf[offset:], r.Symbol)
	return buf
}

// SnapshotFrame is the outbound frame answering a Snapshot request: the
// aggregated levels of both sides, bids best first then asks best first.
type SnapshotFrame struct {
	Timestamp uint64
	Symbol    string
	Bids      []common.Level
	Asks      []common.Level
}

const SnapshotFrameHeaderLen = 1 + 8 + 1 + 2 + 2

// Serialize lays out the frame as header, symbol, then 16 bytes per level.
func (s *SnapshotFrame) Serialize() []byte {
	total := SnapshotFrameHeaderLen + len(s.Symbol) + 16*(len(s.Bids)+len(s.Asks))
	buf := make([]byte, total)
	buf[0] = byte(SnapshotReport)
	binary.BigEndian.PutUint64(buf[1:9], s.Timestamp)
	buf[9] = uint8(len(s.Symbol))
	binary.BigEndian.PutUint16(buf[10:12], uint16(len(s.Bids)))
	binary.BigEndian.PutUint16(buf[12:14], uint16(len(s.Asks)))

	offset := SnapshotFrameHeaderLen
	copy(buf[offset:], s.Symbol)
	offset += len(s.Symbol)
	for _, level := range s.Bids {
		binary.BigEndian.PutUint64(buf[offset:offset+8], level.Price)
		binary.BigEndian.PutUint64(buf[offset+8:offset+16], level.Qty)
		offset += 16
	}
	for _, level := range s.Asks {
		binary.BigEndian.PutUint64(buf[offset:offset+8], level.Price)
		binary.BigEndian.PutUint64(buf[offset+8:offset+16], level.Qty)
		offset += 16
	}
	return buf
}
