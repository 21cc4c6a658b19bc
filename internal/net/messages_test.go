package net

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skoll/internal/common"
)

func encodeNewOrder(m NewOrderMessage) []byte {
	buf := make([]byte, BaseMessageHeaderLen+NewOrderMessageHeaderLen+len(m.Symbol))
	binary.BigEndian.PutUint16(buf[0:2], uint16(NewOrder))
	buf[2] = byte(m.OrderType)
	buf[3] = byte(m.Side)
	binary.BigEndian.PutUint64(buf[4:12], m.OrderID)
	binary.BigEndian.PutUint64(buf[12:20], m.UserID)
	binary.BigEndian.PutUint64(buf[20:28], m.Price)
	binary.BigEndian.PutUint64(buf[28:36], m.Qty)
	buf[36] = uint8(len(m.Symbol))
	copy(buf[37:], m.Symbol)
	return buf
}

func TestParseMessage_NewOrder(t *testing.T) {
	want := NewOrderMessage{
		BaseMessage: BaseMessage{TypeOf: NewOrder},
		OrderType:   common.FOK,
		Side:        common.Ask,
		OrderID:     42,
		UserID:      7,
		Price:       100 * common.Precision,
		Qty:         3 * common.Precision,
		SymbolLen:   7,
		Symbol:      "BTCUSDT",
	}

	got, err := parseMessage(encodeNewOrder(want))
	require.NoError(t, err)
	assert.Equal(t, want, got)

	ord := got.(NewOrderMessage).Order()
	assert.Equal(t, common.Order{
		ID:     42,
		UserID: 7,
		Type:   common.FOK,
		Side:   common.Ask,
		Price:  100 * common.Precision,
		Qty:    3 * common.Precision,
	}, ord)
}

func TestParseMessage_CancelOrder(t *testing.T) {
	buf := make([]byte, BaseMessageHeaderLen+CancelOrderMessageHeaderLen+3)
	binary.BigEndian.PutUint16(buf[0:2], uint16(CancelOrder))
	binary.BigEndian.PutUint64(buf[2:10], 42)
	buf[10] = 3
	copy(buf[11:], "ETH")

	got, err := parseMessage(buf)
	require.NoError(t, err)
	assert.Equal(t, CancelOrderMessage{
		BaseMessage: BaseMessage{TypeOf: CancelOrder},
		OrderID:     42,
		SymbolLen:   3,
		Symbol:      "ETH",
	}, got)
}

func TestParseMessage_ModifyOrder(t *testing.T) {
	buf := make([]byte, BaseMessageHeaderLen+ModifyOrderMessageHeaderLen+3)
	binary.BigEndian.PutUint16(buf[0:2], uint16(ModifyOrder))
	binary.BigEndian.PutUint64(buf[2:10], 42)
	binary.BigEndian.PutUint64(buf[10:18], 99*common.Precision)
	binary.BigEndian.PutUint64(buf[18:26], 0)
	buf[26] = 3
	copy(buf[27:], "ETH")

	got, err := parseMessage(buf)
	require.NoError(t, err)
	assert.Equal(t, ModifyOrderMessage{
		BaseMessage: BaseMessage{TypeOf: ModifyOrder},
		OrderID:     42,
		NewPrice:    99 * common.Precision,
		NewQty:      0,
		SymbolLen:   3,
		Symbol:      "ETH",
	}, got)
}

func TestParseMessage_Snapshot(t *testing.T) {
	buf := make([]byte, BaseMessageHeaderLen+SnapshotMessageHeaderLen+3)
	binary.BigEndian.PutUint16(buf[0:2], uint16(Snapshot))
	buf[2] = 10
	buf[3] = 3
	copy(buf[4:], "ETH")

	got, err := parseMessage(buf)
	require.NoError(t, err)
	assert.Equal(t, SnapshotMessage{
		BaseMessage: BaseMessage{TypeOf: Snapshot},
		Depth:       10,
		SymbolLen:   3,
		Symbol:      "ETH",
	}, got)
}

func TestParseMessage_TooShort(t *testing.T) {
	_, err := parseMessage([]byte{0})
	assert.ErrorIs(t, err, ErrMessageTooShort)

	// Header claims a longer symbol than the payload carries.
	buf := make([]byte, BaseMessageHeaderLen+CancelOrderMessageHeaderLen)
	binary.BigEndian.PutUint16(buf[0:2], uint16(CancelOrder))
	buf[10] = 8
	_, err = parseMessage(buf)
	assert.ErrorIs(t, err, ErrMessageTooShort)
}

func TestParseMessage_UnknownType(t *testing.T) {
	buf := make([]byte, BaseMessageHeaderLen)
	binary.BigEndian.PutUint16(buf[0:2], 999)
	_, err := parseMessage(buf)
	assert.ErrorIs(t, err, ErrInvalidMessageType)
}

func TestReport_Serialize(t *testing.T) {
	report := Report{
		MessageType: ExecutionReport,
		Side:        common.Bid,
		Timestamp:   12345,
		OrderID:     2,
		MakerID:     1,
		Price:       100 * common.Precision,
		Qty:         1 * common.Precision,
		SymbolLen:   7,
		ExecID:      "0c0f8b9e-9a42-4a9f-b9f3-0c1a2b3c4d5e",
		Symbol:      "BTCUSDT",
	}

	frame := report.Serialize()
	require.Len(t, frame, ReportFixedHeaderLen+7)

	assert.Equal(t, byte(ExecutionReport), frame[0])
	assert.Equal(t, uint64(12345), binary.BigEndian.Uint64(frame[3:11]))
	assert.Equal(t, uint64(2), binary.BigEndian.Uint64(frame[11:19]))
	assert.Equal(t, uint64(1), binary.BigEndian.Uint64(frame[19:27]))
	assert.Equal(t, 100*common.Precision, binary.BigEndian.Uint64(frame[27:35]))
	assert.Equal(t, report.ExecID, string(frame[46:46+execIDLen]))
	assert.Equal(t, "BTCUSDT", string(frame[ReportFixedHeaderLen:]))
}

func TestSnapshotFrame_Serialize(t *testing.T) {
	frame := SnapshotFrame{
		Timestamp: 1,
		Symbol:    "BTCUSDT",
		Bids:      []common.Level{{Price: 99 * common.Precision, Qty: 2 * common.Precision}},
		Asks: []common.Level{
			{Price: 100 * common.Precision, Qty: 1 * common.Precision},
			{Price: 101 * common.Precision, Qty: 3 * common.Precision},
		},
	}

	buf := frame.Serialize()
	require.Len(t, buf, SnapshotFrameHeaderLen+7+3*16)

	assert.Equal(t, byte(SnapshotReport), buf[0])
	assert.Equal(t, uint16(1), binary.BigEndian.Uint16(buf[10:12]))
	assert.Equal(t, uint16(2), binary.BigEndian.Uint16(buf[12:14]))

	offset := SnapshotFrameHeaderLen + 7
	assert.Equal(t, 99*common.Precision, binary.BigEndian.Uint64(buf[offset:offset+8]))
	assert.Equal(t, 2*common.Precision, binary.BigEndian.Uint64(buf[offset+8:offset+16]))
}
