package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"io"
	"log"
	"math/big"
	"net"
	"os"
	"strings"

	"github.com/shopspring/decimal"

	"skoll/internal/common"
	skollNet "skoll/internal/net"
)

func main() {
	// 1. CLI Parameter Parsing
	serverAddr := flag.String("server", "127.0.0.1:9001", "Address of the exchange gateway")
	action := flag.String("action", "place", "Action to perform: ['place', 'cancel', 'modify', 'snapshot']")

	// Order Parameters
	symbol := flag.String("symbol", "BTCUSDT", "Symbol to trade")
	sideStr := flag.String("side", "bid", "Order side: 'bid' or 'ask'")
	typeStr := flag.String("type", "limit", "Order type: 'market', 'limit', 'post-only', 'ioc', 'fok'")
	priceStr := flag.String("price", "100", "Limit price (decimal, e.g. 100)")
	qtyStr := flag.String("qty", "1", "Quantity (decimal)")
	orderID := flag.Uint64("id", 0, "Order id (compulsory for place/cancel/modify)")
	userID := flag.Uint64("user", 0, "User id")

	// Modify Parameters
	newPriceStr := flag.String("new-price", "", "New price for modify (empty = unchanged)")
	newQtyStr := flag.String("new-qty", "", "New quantity for modify (empty = unchanged)")

	// Snapshot Parameters
	depth := flag.Uint("depth", 10, "Levels per side for snapshot")

	flag.Parse()

	// Connect to the gateway
	conn, err := net.Dial("tcp", *serverAddr)
	if err != nil {
		log.Fatalf("Failed to connect to gateway at %s: %v", *serverAddr, err)
	}
	defer conn.Close()
	fmt.Printf("Connected to %s\n", *serverAddr)

	// Start listening for reports (async)
	go readReports(conn)

	side := common.Bid
	if strings.ToLower(*sideStr) == "ask" || strings.ToLower(*sideStr) == "sell" {
		side = common.Ask
	}
	orderType, err := parseOrderType(*typeStr)
	if err != nil {
		log.Fatal(err)
	}

	switch strings.ToLower(*action) {
	case "place":
		if *orderID == 0 {
			log.Fatal("Error: -id is required for place")
		}
		price := mustFixed(*priceStr)
		qty := mustFixed(*qtyStr)
		if err := sendPlaceOrder(conn, *symbol, orderType, side, *orderID, *userID, price, qty); err != nil {
			log.Fatalf("Failed to place order: %v", err)
		}
		fmt.Printf("-> Sent %s %s: %s %s @ %s\n",
			strings.ToUpper(*sideStr), *typeStr, *symbol, *qtyStr, *priceStr)

	case "cancel":
		if *orderID == 0 {
			log.Fatal("Error: -id is required for cancel")
		}
		if err := sendCancelOrder(conn, *symbol, *orderID); err != nil {
			log.Fatalf("Failed to send cancel: %v", err)
		}
		fmt.Printf("-> Sent Cancel for order %d\n", *orderID)

	case "modify":
		if *orderID == 0 {
			log.Fatal("Error: -id is required for modify")
		}
		var newPrice, newQty uint64
		if *newPriceStr != "" {
			newPrice = mustFixed(*newPriceStr)
		}
		if *newQtyStr != "" {
			newQty = mustFixed(*newQtyStr)
		}
		if err := sendModifyOrder(conn, *symbol, *orderID, newPrice, newQty); err != nil {
			log.Fatalf("Failed to send modify: %v", err)
		}
		fmt.Printf("-> Sent Modify for order %d\n", *orderID)

	case "snapshot":
		if err := sendSnapshot(conn, *symbol, uint8(*depth)); err != nil {
			log.Fatalf("Failed to send snapshot request: %v", err)
		}
		fmt.Printf("-> Sent Snapshot request for %s\n", *symbol)

	default:
		log.Fatalf("Unknown action: %s", *action)
	}

	// Keep the client alive to receive reports
	fmt.Println("\nListening for reports... (Press Ctrl+C to exit)")
	select {}
}

func parseOrderType(s string) (common.OrderType, error) {
	switch strings.ToLower(s) {
	case "market":
		return common.Market, nil
	case "limit":
		return common.Limit, nil
	case "post-only", "postonly", "maker-only":
		return common.PostOnly, nil
	case "ioc":
		return common.IOC, nil
	case "fok":
		return common.FOK, nil
	}
	return 0, fmt.Errorf("unknown order type %q", s)
}

// mustFixed converts a human decimal string like "100" into Precision
// units. Negative values and values finer than one fixed-point unit (1e-8)
// are rejected client-side. The engine accepts only whole multiples of
// Precision, so a fractional value such as "100.5" converts here and is then
// rejected by the gateway as out of range.
func mustFixed(s string) uint64 {
	d, err := decimal.NewFromString(s)
	if err != nil {
		log.Fatalf("Invalid decimal %q: %v", s, err)
	}
	scaled := d.Shift(8)
	if !scaled.IsInteger() || scaled.IsNegative() {
		log.Fatalf("Value %q is not a valid non-negative multiple of the tick", s)
	}
	return scaled.BigInt().Uint64()
}

// fromFixed renders Precision units back to a decimal string.
func fromFixed(v uint64) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), -8).String()
}

// sendPlaceOrder constructs and sends the NewOrder message
func sendPlaceOrder(conn net.Conn, symbol string, orderType common.OrderType, side common.Side, id, user, price, qty uint64) error {
	buf := make([]byte, skollNet.BaseMessageHeaderLen+skollNet.NewOrderMessageHeaderLen+len(symbol))

	binary.BigEndian.PutUint16(buf[0:2], uint16(skollNet.NewOrder))
	buf[2] = byte(orderType)
	buf[3] = byte(side)
	binary.BigEndian.PutUint64(buf[4:12], id)
	binary.BigEndian.PutUint64(buf[12:20], user)
	binary.BigEndian.PutUint64(buf[20:28], price)
	binary.BigEndian.PutUint64(buf[28:36], qty)
	buf[36] = uint8(len(symbol))
	copy(buf[37:], symbol)

	_, err := conn.Write(buf)
	return err
}

// sendCancelOrder constructs and sends the CancelOrder message
func sendCancelOrder(conn net.Conn, symbol string, id uint64) error {
	buf := make([]byte, skollNet.BaseMessageHeaderLen+skollNet.CancelOrderMessageHeaderLen+len(symbol))

	binary.BigEndian.PutUint16(buf[0:2], uint16(skollNet.CancelOrder))
	binary.BigEndian.PutUint64(buf[2:10], id)
	buf[10] = uint8(len(symbol))
	copy(buf[11:], symbol)

	_, err := conn.Write(buf)
	return err
}

// sendModifyOrder constructs and sends the ModifyOrder message
func sendModifyOrder(conn net.Conn, symbol string, id, newPrice, newQty uint64) error {
	buf := make([]byte, skollNet.BaseMessageHeaderLen+skollNet.ModifyOrderMessageHeaderLen+len(symbol))

	binary.BigEndian.PutUint16(buf[0:2], uint16(skollNet.ModifyOrder))
	binary.BigEndian.PutUint64(buf[2:10], id)
	binary.BigEndian.PutUint64(buf[10:18], newPrice)
	binary.BigEndian.PutUint64(buf[18:26], newQty)
	buf[26] = uint8(len(symbol))
	copy(buf[27:], symbol)

	_, err := conn.Write(buf)
	return err
}

// sendSnapshot constructs and sends the Snapshot request
func sendSnapshot(conn net.Conn, symbol string, depth uint8) error {
	buf := make([]byte, skollNet.BaseMessageHeaderLen+skollNet.SnapshotMessageHeaderLen+len(symbol))

	binary.BigEndian.PutUint16(buf[0:2], uint16(skollNet.Snapshot))
	buf[2] = depth
	buf[3] = uint8(len(symbol))
	copy(buf[4:], symbol)

	_, err := conn.Write(buf)
	return err
}

// readReports continuously reads and prints report frames from the gateway.
// The first byte of each frame carries the report type; snapshot frames have
// their own layout.
func readReports(conn net.Conn) {
	for {
		typeBuf := make([]byte, 1)
		if _, err := io.ReadFull(conn, typeBuf); err != nil {
			if err != io.EOF {
				log.Printf("Connection lost: %v", err)
			}
			os.Exit(0)
		}

		switch skollNet.ReportMessageType(typeBuf[0]) {
		case skollNet.SnapshotReport:
			readSnapshotFrame(conn)
		default:
			readReportFrame(conn, skollNet.ReportMessageType(typeBuf[0]))
		}
	}
}

func readReportFrame(conn net.Conn, msgType skollNet.ReportMessageType) {
	headerBuf := make([]byte, skollNet.ReportFixedHeaderLen-1)
	if _, err := io.ReadFull(conn, headerBuf); err != nil {
		log.Printf("Error reading report header: %v", err)
		os.Exit(0)
	}

	side := common.Side(headerBuf[0])
	found := headerBuf[1]
	orderID := binary.BigEndian.Uint64(headerBuf[10:18])
	makerID := binary.BigEndian.Uint64(headerBuf[18:26])
	price := binary.BigEndian.Uint64(headerBuf[26:34])
	qty := binary.BigEndian.Uint64(headerBuf[34:42])
	errStrLen := binary.BigEndian.Uint16(headerBuf[42:44])
	symbolLen := headerBuf[44]
	execID := strings.TrimRight(string(headerBuf[45:45+36]), "\x00")

	varBuf := make([]byte, int(errStrLen)+int(symbolLen))
	if len(varBuf) > 0 {
		if _, err := io.ReadFull(conn, varBuf); err != nil {
			log.Printf("Error reading report body: %v", err)
			return
		}
	}
	errStr := string(varBuf[:errStrLen])
	symbol := string(varBuf[errStrLen:])

	switch msgType {
	case skollNet.ExecutionReport:
		fmt.Printf("\n[EXECUTION] %s %s | %s @ %s | taker #%d maker #%d | exec %s\n",
			strings.ToUpper(side.String()), symbol, fromFixed(qty), fromFixed(price),
			orderID, makerID, execID)
	case skollNet.CancelReport:
		if found == 1 {
			fmt.Printf("\n[CANCELLED] %s order #%d, %s remaining @ %s\n",
				symbol, orderID, fromFixed(qty), fromFixed(price))
		} else {
			fmt.Printf("\n[CANCEL] order #%d not found\n", orderID)
		}
	case skollNet.ErrorReport:
		fmt.Printf("\n[SERVER ERROR] %s\n", errStr)
	default:
		log.Printf("Unknown report type %d", msgType)
	}
}

func readSnapshotFrame(conn net.Conn) {
	headerBuf := make([]byte, skollNet.SnapshotFrameHeaderLen-1)
	if _, err := io.ReadFull(conn, headerBuf); err != nil {
		log.Printf("Error reading snapshot header: %v", err)
		os.Exit(0)
	}

	symbolLen := headerBuf[8]
	bidCount := binary.BigEndian.Uint16(headerBuf[9:11])
	askCount := binary.BigEndian.Uint16(headerBuf[11:13])

	body := make([]byte, int(symbolLen)+16*int(bidCount+askCount))
	if _, err := io.ReadFull(conn, body); err != nil {
		log.Printf("Error reading snapshot body: %v", err)
		return
	}
	symbol := string(body[:symbolLen])

	fmt.Printf("\n[L2 %s]\n", symbol)
	offset := int(symbolLen)
	printSide := func(name string, count uint16) {
		fmt.Printf("  %s:\n", name)
		for i := uint16(0); i < count; i++ {
			price := binary.BigEndian.Uint64(body[offset : offset+8])
			qty := binary.BigEndian.Uint64(body[offset+8 : offset+16])
			fmt.Printf("    %s x %s\n", fromFixed(price), fromFixed(qty))
			offset += 16
		}
	}
	printSide("bids", bidCount)
	printSide("asks", askCount)
}
