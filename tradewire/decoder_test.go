package tradewire

import (
	"testing"

	"github.com/go-playground/assert/v2"
)

type eventRecorder struct {
	events []bufferedEvent
}

func (self *eventRecorder) emit(name EventName, payload any) {
	self.events = append(self.events, bufferedEvent{name: name, payload: payload})
}

func TestDecodeOrderStatus(t *testing.T) {
	rec := &eventRecorder{}
	d := newDecoder(false, rec.emit)
	d.setServerVersion(serverVerDecimalQty)

	d.pushMessage([]string{
		"3", "1", "Filled", "10", "0", "101.5", "555", "0", "101.5", "3", "", "0",
	})
	d.process()

	assert.Equal(t, len(rec.events), 1)
	assert.Equal(t, rec.events[0].name, EventOrderStatus)
	status := rec.events[0].payload.(OrderStatus)
	assert.Equal(t, status.Status, "Filled")
	assert.Equal(t, status.Filled, Decimal(10))
	assert.Equal(t, status.Remaining, Decimal(0))
	assert.Equal(t, status.AvgFillPrice, 101.5)
	assert.Equal(t, status.PermId, 555)
	assert.Equal(t, status.ParentId, 0)
	assert.Equal(t, status.LastFillPrice, 101.5)
	assert.Equal(t, status.ClientId, 3)
	assert.Equal(t, status.WhyHeld, "")
	assert.Equal(t, status.MktCapPrice, float64(0))
}

func TestDecodeOrderStatusPreDecimal(t *testing.T) {
	rec := &eventRecorder{}
	d := newDecoder(false, rec.emit)
	// old enough that the market-cap-price trailing field is absent too
	d.setServerVersion(serverVerMarketCapPrice - 1)

	d.pushMessage([]string{
		"3", "1", "Submitted", "5", "15", "99.5", "12", "0", "0", "3", "",
	})
	d.process()

	assert.Equal(t, len(rec.events), 1)
	status := rec.events[0].payload.(OrderStatus)
	assert.Equal(t, status.Status, "Submitted")
	assert.Equal(t, status.Filled, Decimal(5))
	assert.Equal(t, status.Remaining, Decimal(15))
	assert.Equal(t, status.MktCapPrice, float64(0))
}

func TestDecodeTickPriceSyntheticSize(t *testing.T) {
	rec := &eventRecorder{}
	d := newDecoder(false, rec.emit)

	d.pushMessage([]string{"1", "2", "7", "1", "185.42", "100"})
	d.process()

	assert.Equal(t, len(rec.events), 2)
	assert.Equal(t, rec.events[0].name, EventTickPrice)
	tick := rec.events[0].payload.(TickPrice)
	assert.Equal(t, tick.ReqId, 7)
	assert.Equal(t, tick.TickType, tickTypeBid)
	assert.Equal(t, tick.Price, 185.42)
	assert.Equal(t, tick.Size, Decimal(100))

	assert.Equal(t, rec.events[1].name, EventTickSize)
	size := rec.events[1].payload.(TickSize)
	assert.Equal(t, size.ReqId, 7)
	assert.Equal(t, size.TickType, tickTypeBidSize)
	assert.Equal(t, size.Size, Decimal(100))
}

func TestDecodeTickPriceNoSyntheticSizeForOtherTypes(t *testing.T) {
	rec := &eventRecorder{}
	d := newDecoder(false, rec.emit)

	// tick type 9 (close price) has no companion size field
	d.pushMessage([]string{"1", "2", "7", "9", "184.10", "0"})
	d.process()

	assert.Equal(t, len(rec.events), 1)
	assert.Equal(t, rec.events[0].name, EventTickPrice)
}

func TestDecodeFaultIsolation(t *testing.T) {
	rec := &eventRecorder{}
	d := newDecoder(false, rec.emit)
	d.setServerVersion(serverVerDecimalQty)

	// truncated order status, then a well-formed current time
	d.pushMessage([]string{"3", "1", "Filled", "10"})
	d.pushMessage([]string{"49", "1", "1724900000"})
	d.process()

	assert.Equal(t, len(rec.events), 2)
	assert.Equal(t, rec.events[0].name, EventError)
	apiError := rec.events[0].payload.(ApiError)
	assert.Equal(t, apiError.Code, ErrBadMessage)
	assert.Equal(t, apiError.ReqId, NoRequestId)

	assert.Equal(t, rec.events[1].name, EventCurrentTime)
	assert.Equal(t, rec.events[1].payload.(CurrentTime).Time, int64(1724900000))
}

func TestDecodeLeftoverTokensFault(t *testing.T) {
	rec := &eventRecorder{}
	d := newDecoder(false, rec.emit)

	d.pushMessage([]string{"49", "1", "1724900000", "extra"})
	d.process()

	// no partial delivery of the buffered current time event
	assert.Equal(t, len(rec.events), 1)
	assert.Equal(t, rec.events[0].name, EventError)
	assert.Equal(t, rec.events[0].payload.(ApiError).Code, ErrBadMessage)
}

func TestDecodeUnknownMessageId(t *testing.T) {
	rec := &eventRecorder{}
	d := newDecoder(false, rec.emit)

	d.pushMessage([]string{"999", "1", "x"})
	d.pushMessage([]string{"49", "1", "1724900000"})
	d.process()

	assert.Equal(t, len(rec.events), 2)
	assert.Equal(t, rec.events[0].name, EventError)
	assert.Equal(t, rec.events[0].payload.(ApiError).Code, ErrUnknownId)
	assert.Equal(t, rec.events[1].name, EventCurrentTime)
}

func TestDecodeLegacyUnderrunWaitsForMore(t *testing.T) {
	rec := &eventRecorder{}
	d := newDecoder(true, rec.emit)

	d.pushTokens([]string{"49", "1"})
	d.process()
	assert.Equal(t, len(rec.events), 0)

	d.pushTokens([]string{"1724900000"})
	d.process()
	assert.Equal(t, len(rec.events), 1)
	assert.Equal(t, rec.events[0].name, EventCurrentTime)
	assert.Equal(t, rec.events[0].payload.(CurrentTime).Time, int64(1724900000))
}

func TestDecodeErrMsgWarning(t *testing.T) {
	rec := &eventRecorder{}
	d := newDecoder(false, rec.emit)

	d.pushMessage([]string{"4", "2", "-1", "2104", "Market data farm connection is OK"})
	d.process()

	assert.Equal(t, len(rec.events), 1)
	assert.Equal(t, rec.events[0].name, EventInfo)
	apiError := rec.events[0].payload.(ApiError)
	assert.Equal(t, apiError.Code, 2104)
}

func TestDecodeErrMsgUnescapesText(t *testing.T) {
	rec := &eventRecorder{}
	d := newDecoder(false, rec.emit)
	d.setServerVersion(serverVerEncodeMsgASCII7)

	d.pushMessage([]string{"4", "2", "5", "400", "caf\\u00e9"})
	d.process()

	assert.Equal(t, len(rec.events), 1)
	assert.Equal(t, rec.events[0].name, EventError)
	apiError := rec.events[0].payload.(ApiError)
	assert.Equal(t, apiError.ReqId, 5)
	assert.Equal(t, apiError.Code, 400)
	assert.Equal(t, apiError.Message, "café")
}

func TestDecodeManagedAccounts(t *testing.T) {
	rec := &eventRecorder{}
	d := newDecoder(false, rec.emit)

	d.pushMessage([]string{"15", "1", "U100,U200"})
	d.process()

	assert.Equal(t, len(rec.events), 1)
	accounts := rec.events[0].payload.(ManagedAccounts)
	assert.Equal(t, accounts.Accounts, []string{"U100", "U200"})
}

func TestDecodePosition(t *testing.T) {
	rec := &eventRecorder{}
	d := newDecoder(false, rec.emit)
	d.setServerVersion(serverVerDecimalQty)

	d.pushMessage([]string{
		"61", "3", "U100",
		"8314", "IBM", "STK", "", "0", "", "", "NYSE", "USD", "IBM", "IBM",
		"500", "143.25",
	})
	d.process()

	assert.Equal(t, len(rec.events), 1)
	position := rec.events[0].payload.(Position)
	assert.Equal(t, position.Account, "U100")
	assert.Equal(t, position.Contract.Symbol, "IBM")
	assert.Equal(t, position.Contract.ConId, 8314)
	assert.Equal(t, position.Position, Decimal(500))
	assert.Equal(t, position.AvgCost, 143.25)
}

func TestDecodeHistoricalData(t *testing.T) {
	rec := &eventRecorder{}
	d := newDecoder(false, rec.emit)

	d.pushMessage([]string{
		"17", "9", "20260801 09:30:00", "20260801 16:00:00", "2",
		"20260801 09:30:00", "100", "101", "99.5", "100.5", "1200", "100.2", "30",
		"20260801 09:31:00", "100.5", "102", "100", "101.5", "900", "101.1", "25",
	})
	d.process()

	assert.Equal(t, len(rec.events), 2)
	assert.Equal(t, rec.events[0].name, EventHistoricalData)
	data := rec.events[0].payload.(HistoricalData)
	assert.Equal(t, data.ReqId, 9)
	assert.Equal(t, len(data.Bars), 2)
	assert.Equal(t, data.Bars[0].Open, float64(100))
	assert.Equal(t, data.Bars[1].Close, 101.5)
	assert.Equal(t, data.Bars[1].Volume, Decimal(900))

	assert.Equal(t, rec.events[1].name, EventHistoricalDataEnd)
	end := rec.events[1].payload.(HistoricalDataEnd)
	assert.Equal(t, end.ReqId, 9)
	assert.Equal(t, end.Start, "20260801 09:30:00")
}

func TestDecodeOpenOrder(t *testing.T) {
	rec := &eventRecorder{}
	d := newDecoder(false, rec.emit)
	d.setServerVersion(176)

	d.pushMessage([]string{
		"5", "34", "90",
		"8314", "IBM", "STK", "", "0", "", "", "SMART", "USD", "IBM", "IBM",
		"BUY", "100", "LMT", "185.5", "0", "DAY", "", "U100",
		"555", "0", "0", "0", "10000", "Submitted",
	})
	d.process()

	assert.Equal(t, len(rec.events), 1)
	assert.Equal(t, rec.events[0].name, EventOpenOrder)
	open := rec.events[0].payload.(OpenOrder)
	assert.Equal(t, open.Order.OrderId, 90)
	assert.Equal(t, open.Contract.Symbol, "IBM")
	assert.Equal(t, open.Order.Action, "BUY")
	assert.Equal(t, open.Order.TotalQuantity, Decimal(100))
	assert.Equal(t, open.Order.OrderType, "LMT")
	assert.Equal(t, open.Order.LmtPrice, 185.5)
	assert.Equal(t, open.Order.Tif, "DAY")
	assert.Equal(t, open.Order.Account, "U100")
	assert.Equal(t, open.Order.PermId, 555)
	assert.Equal(t, open.Order.Hidden, false)
	assert.Equal(t, open.Order.CashQty, float64(10000))
	assert.Equal(t, open.Order.Status, "Submitted")
}

func TestDecodeCompletedOrder(t *testing.T) {
	rec := &eventRecorder{}
	d := newDecoder(false, rec.emit)
	d.setServerVersion(176)

	d.pushMessage([]string{
		"101",
		"8314", "IBM", "STK", "", "0", "", "", "SMART", "USD", "IBM", "IBM",
		"SELL", "50", "MKT", "0", "0", "DAY", "", "U100", "0",
		"556", "Filled", "20260829 10:15:00", "Filled at average price 185.40",
	})
	d.process()

	assert.Equal(t, len(rec.events), 1)
	assert.Equal(t, rec.events[0].name, EventCompletedOrder)
	completed := rec.events[0].payload.(CompletedOrder)
	assert.Equal(t, completed.Order.Action, "SELL")
	assert.Equal(t, completed.Order.TotalQuantity, Decimal(50))
	assert.Equal(t, completed.Order.PermId, 556)
	assert.Equal(t, completed.Order.Status, "Filled")
	assert.Equal(t, completed.Order.CompletedTime, "20260829 10:15:00")
	assert.Equal(t, completed.Order.CompletedStatus, "Filled at average price 185.40")
}

func TestDecodeTickByTick(t *testing.T) {
	rec := &eventRecorder{}
	d := newDecoder(false, rec.emit)
	d.setServerVersion(176)

	d.pushMessage([]string{
		"99", "6", "3", "1724900000", "185.40", "185.42", "300", "200", "1",
	})
	d.pushMessage([]string{
		"99", "6", "1", "1724900001", "185.41", "100", "2", "NYSE", "",
	})
	d.pushMessage([]string{
		"99", "6", "4", "1724900002", "185.41",
	})
	d.process()

	assert.Equal(t, len(rec.events), 3)

	assert.Equal(t, rec.events[0].name, EventTickByTickBidAsk)
	bidAsk := rec.events[0].payload.(TickByTickBidAsk)
	assert.Equal(t, bidAsk.ReqId, 6)
	assert.Equal(t, bidAsk.Time, int64(1724900000))
	assert.Equal(t, bidAsk.BidPrice, 185.40)
	assert.Equal(t, bidAsk.AskPrice, 185.42)
	assert.Equal(t, bidAsk.BidSize, Decimal(300))
	assert.Equal(t, bidAsk.AskSize, Decimal(200))
	assert.Equal(t, bidAsk.BidPastLow, true)
	assert.Equal(t, bidAsk.AskPastHigh, false)

	assert.Equal(t, rec.events[1].name, EventTickByTickAllLast)
	last := rec.events[1].payload.(TickByTickAllLast)
	assert.Equal(t, last.Price, 185.41)
	assert.Equal(t, last.Size, Decimal(100))
	assert.Equal(t, last.PastLimit, false)
	assert.Equal(t, last.Unreported, true)
	assert.Equal(t, last.Exchange, "NYSE")

	assert.Equal(t, rec.events[2].name, EventTickByTickMidPoint)
	midPoint := rec.events[2].payload.(TickByTickMidPoint)
	assert.Equal(t, midPoint.MidPoint, 185.41)
}

func TestDecodeMarketDepthL2SmartDepthGate(t *testing.T) {
	rec := &eventRecorder{}
	d := newDecoder(false, rec.emit)
	d.setServerVersion(serverVerSmartDepth)

	d.pushMessage([]string{"13", "1", "5", "0", "ISLAND", "1", "0", "185.40", "300", "1"})
	d.process()

	assert.Equal(t, len(rec.events), 1)
	depth := rec.events[0].payload.(MarketDepthL2)
	assert.Equal(t, depth.MarketMaker, "ISLAND")
	assert.Equal(t, depth.IsSmartDepth, true)

	// one version earlier the flag is not on the wire
	rec = &eventRecorder{}
	d = newDecoder(false, rec.emit)
	d.setServerVersion(serverVerSmartDepth - 1)
	d.pushMessage([]string{"13", "1", "5", "0", "ISLAND", "1", "0", "185.40", "300"})
	d.process()

	assert.Equal(t, len(rec.events), 1)
	depth = rec.events[0].payload.(MarketDepthL2)
	assert.Equal(t, depth.IsSmartDepth, false)
}
