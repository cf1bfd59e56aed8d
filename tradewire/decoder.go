package tradewire

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang/glog"
)

type emitFunc func(name EventName, payload any)

// eventBuffer collects the events of one message during decode. Nothing is
// delivered until the whole message decodes cleanly, so a rejected message
// never produces partial side effects.
type bufferedEvent struct {
	name    EventName
	payload any
}

type eventBuffer struct {
	events []bufferedEvent
}

func (self *eventBuffer) emit(name EventName, payload any) {
	self.events = append(self.events, bufferedEvent{name: name, payload: payload})
}

type decodeFunc func(r *tokenReader, e *eventBuffer)

// decoder turns the inbound token queue into typed events. The dispatch
// table is fixed at construction and read-only afterwards.
type decoder struct {
	queue         *tokenQueue
	legacy        bool
	serverVersion int
	emit          emitFunc
	dispatch      map[int]decodeFunc
}

func newDecoder(legacy bool, emit emitFunc) *decoder {
	self := &decoder{
		queue:  newTokenQueue(),
		legacy: legacy,
		emit:   emit,
	}
	self.dispatch = map[int]decodeFunc{
		msgTickPrice:          self.decodeTickPrice,
		msgTickSize:           self.decodeTickSize,
		msgTickString:         self.decodeTickString,
		msgTickGeneric:        self.decodeTickGeneric,
		msgTickSnapshotEnd:    self.decodeTickSnapshotEnd,
		msgMarketDataType:     self.decodeMarketDataType,
		msgOrderStatus:        self.decodeOrderStatus,
		msgErrMsg:             self.decodeErrMsg,
		msgOpenOrder:          self.decodeOpenOrder,
		msgOpenOrderEnd:       self.decodeOpenOrderEnd,
		msgCompletedOrder:     self.decodeCompletedOrder,
		msgCompletedOrdersEnd: self.decodeCompletedOrdersEnd,
		msgNextValidId:        self.decodeNextValidId,
		msgAccountValue:       self.decodeAccountValue,
		msgAccountUpdateTime:  self.decodeAccountUpdateTime,
		msgAccountDownloadEnd: self.decodeAccountDownloadEnd,
		msgManagedAccounts:    self.decodeManagedAccounts,
		msgContractData:       self.decodeContractData,
		msgContractDataEnd:    self.decodeContractDataEnd,
		msgExecutionData:      self.decodeExecutionData,
		msgExecutionDataEnd:   self.decodeExecutionDataEnd,
		msgCommissionReport:   self.decodeCommissionReport,
		msgMarketDepth:        self.decodeMarketDepth,
		msgMarketDepthL2:      self.decodeMarketDepthL2,
		msgPosition:           self.decodePosition,
		msgPositionEnd:        self.decodePositionEnd,
		msgPnl:                self.decodePnl,
		msgPnlSingle:          self.decodePnlSingle,
		msgTickByTick:         self.decodeTickByTick,
		msgCurrentTime:        self.decodeCurrentTime,
		msgHistoricalData:     self.decodeHistoricalData,
	}
	return self
}

func (self *decoder) setServerVersion(serverVersion int) {
	self.serverVersion = serverVersion
}

// reset drops buffered state on disconnect so a reconnected session starts
// from a clean queue.
func (self *decoder) reset() {
	self.queue = newTokenQueue()
}

func (self *decoder) pushMessage(tokens []string) {
	self.queue.pushMessage(tokens)
}

func (self *decoder) pushTokens(tokens []string) {
	self.queue.pushTokens(tokens)
}

// process drains the token queue one message at a time. In legacy mode a
// mid-message underrun rolls the queue back and waits for more bytes; in
// length-prefixed mode the same condition is a protocol error confined to
// that message.
func (self *decoder) process() {
	for {
		self.queue.compact()
		if self.queue.empty() {
			return
		}

		mark := self.queue.mark()
		bounded := false
		if item, ok := self.queue.peek(); ok && item.kind == tokenKindStart {
			bounded = true
			self.queue.next()
		}

		r := &tokenReader{
			queue:         self.queue,
			serverVersion: self.serverVersion,
		}
		msgId := r.readInt()
		if r.err() != nil {
			if self.legacy && errors.Is(r.err(), errUnderrun) {
				self.queue.restore(mark)
				return
			}
			self.fault(EventName("unknown"), r.err())
			continue
		}

		name := messageName(msgId)
		decode, ok := self.dispatch[msgId]
		if !ok {
			self.drain()
			self.emit(EventError, ApiError{
				ReqId:   NoRequestId,
				Code:    ErrUnknownId,
				Message: fmt.Sprintf("unknown inbound message id %d", msgId),
			})
			continue
		}

		buffer := &eventBuffer{}
		decode(r, buffer)

		if err := r.err(); err != nil {
			if self.legacy && errors.Is(err, errUnderrun) {
				// the rest of the message has not arrived yet
				self.queue.restore(mark)
				return
			}
			self.fault(name, err)
			continue
		}
		if bounded {
			item, ok := self.queue.peek()
			if !ok || item.kind != tokenKindEnd {
				self.fault(name, errors.New("unconsumed tokens after decode"))
				continue
			}
			self.queue.next()
		}

		for _, event := range buffer.events {
			self.emit(event.name, event.payload)
		}
	}
}

// drain resynchronizes on the end marker of a bounded message. Legacy
// mode has no boundaries, so everything queued is lost.
func (self *decoder) drain() {
	self.queue.skipToEnd()
}

func (self *decoder) fault(name EventName, err error) {
	self.drain()
	glog.V(2).Infof("[d]%s decode error = %s\n", name, err)
	self.emit(EventError, ApiError{
		ReqId:   NoRequestId,
		Code:    ErrBadMessage,
		Message: fmt.Sprintf("decode %s: %v", name, err),
	})
}

func (self *decoder) decodeTickPrice(r *tokenReader, e *eventBuffer) {
	version := r.readInt()
	reqId := r.readInt()
	tickType := r.readInt()
	price := r.readFloat()
	size := UnsetDecimal
	if 2 <= version {
		size = r.readDecimal()
	}
	tick := TickPrice{
		ReqId:    reqId,
		TickType: tickType,
		Price:    price,
		Size:     size,
	}
	if 3 <= version {
		mask := r.readInt()
		tick.CanAutoExecute = mask&1 != 0
		tick.PastLimit = mask&2 != 0
		tick.PreOpen = mask&4 != 0
	}
	if r.err() != nil {
		return
	}
	e.emit(EventTickPrice, tick)

	// a bid/ask/last price update implies a companion size update under the
	// matching size field identifier
	if 2 <= version {
		sizeTickType := -1
		switch tickType {
		case tickTypeBid:
			sizeTickType = tickTypeBidSize
		case tickTypeAsk:
			sizeTickType = tickTypeAskSize
		case tickTypeLast:
			sizeTickType = tickTypeLastSize
		}
		if sizeTickType != -1 {
			e.emit(EventTickSize, TickSize{
				ReqId:    reqId,
				TickType: sizeTickType,
				Size:     size,
			})
		}
	}
}

func (self *decoder) decodeTickSize(r *tokenReader, e *eventBuffer) {
	_ = r.readInt() // version
	reqId := r.readInt()
	tickType := r.readInt()
	size := r.readDecimal()
	e.emit(EventTickSize, TickSize{
		ReqId:    reqId,
		TickType: tickType,
		Size:     size,
	})
}

func (self *decoder) decodeTickString(r *tokenReader, e *eventBuffer) {
	_ = r.readInt() // version
	reqId := r.readInt()
	tickType := r.readInt()
	value := r.readString()
	e.emit(EventTickString, TickString{
		ReqId:    reqId,
		TickType: tickType,
		Value:    value,
	})
}

func (self *decoder) decodeTickGeneric(r *tokenReader, e *eventBuffer) {
	_ = r.readInt() // version
	reqId := r.readInt()
	tickType := r.readInt()
	value := r.readFloat()
	e.emit(EventTickGeneric, TickGeneric{
		ReqId:    reqId,
		TickType: tickType,
		Value:    value,
	})
}

func (self *decoder) decodeTickSnapshotEnd(r *tokenReader, e *eventBuffer) {
	_ = r.readInt() // version
	reqId := r.readInt()
	e.emit(EventTickSnapshotEnd, TickSnapshotEnd{ReqId: reqId})
}

func (self *decoder) decodeMarketDataType(r *tokenReader, e *eventBuffer) {
	_ = r.readInt() // version
	reqId := r.readInt()
	dataType := r.readInt()
	e.emit(EventMarketDataType, MarketDataType{
		ReqId:    reqId,
		DataType: dataType,
	})
}

func (self *decoder) decodeOrderStatus(r *tokenReader, e *eventBuffer) {
	_ = r.readInt() // version
	status := OrderStatus{}
	status.Status = r.readString()
	if serverVerDecimalQty <= r.serverVersion {
		status.Filled = r.readDecimal()
		status.Remaining = r.readDecimal()
	} else {
		status.Filled = Decimal(r.readFloat())
		status.Remaining = Decimal(r.readFloat())
	}
	status.AvgFillPrice = r.readFloat()
	status.PermId = r.readInt()
	status.ParentId = r.readInt()
	status.LastFillPrice = r.readFloat()
	status.ClientId = r.readInt()
	status.WhyHeld = r.readString()
	if serverVerMarketCapPrice <= r.serverVersion {
		status.MktCapPrice = r.readFloat()
	}
	e.emit(EventOrderStatus, status)
}

func (self *decoder) decodeErrMsg(r *tokenReader, e *eventBuffer) {
	version := r.readInt()
	if version < 2 {
		message := r.readText()
		e.emit(EventError, ApiError{
			ReqId:   NoRequestId,
			Code:    ErrBadMessage,
			Message: message,
		})
		return
	}
	apiError := ApiError{}
	apiError.ReqId = r.readInt()
	apiError.Code = r.readInt()
	apiError.Message = r.readText()
	if serverVerAdvancedOrderReject <= r.serverVersion {
		apiError.AdvancedOrderReject = r.readText()
	}
	if r.err() != nil {
		return
	}
	if isWarning(apiError.Code) {
		glog.V(2).Infof("[d]gateway warning %d = %s\n", apiError.Code, apiError.Message)
		e.emit(EventInfo, apiError)
		return
	}
	e.emit(EventError, apiError)
}

func (self *decoder) decodeOpenOrder(r *tokenReader, e *eventBuffer) {
	version := r.readInt()
	d := newOrderReader(r, version)
	d.readOrderId()
	d.readContract()
	d.readAction()
	d.readQuantity()
	d.readOrderType()
	d.readPrices()
	d.readTimeInForce()
	d.readOcaGroup()
	d.readAccount()
	d.readCorrelationIds()
	d.readDisplay()
	d.readCashQty()
	d.readStatus()
	if r.err() != nil {
		return
	}
	e.emit(EventOpenOrder, OpenOrder{
		Order:    d.order,
		Contract: d.contract,
	})
}

func (self *decoder) decodeOpenOrderEnd(r *tokenReader, e *eventBuffer) {
	_ = r.readInt() // version
	e.emit(EventOpenOrderEnd, OpenOrderEnd{})
}

func (self *decoder) decodeCompletedOrder(r *tokenReader, e *eventBuffer) {
	d := newOrderReader(r, 1)
	d.readContract()
	d.readAction()
	d.readQuantity()
	d.readOrderType()
	d.readPrices()
	d.readTimeInForce()
	d.readOcaGroup()
	d.readAccount()
	d.readCashQty()
	d.readCompleted()
	if r.err() != nil {
		return
	}
	e.emit(EventCompletedOrder, CompletedOrder{
		Order:    d.order,
		Contract: d.contract,
	})
}

func (self *decoder) decodeCompletedOrdersEnd(r *tokenReader, e *eventBuffer) {
	e.emit(EventCompletedOrdersEnd, CompletedOrdersEnd{})
}

func (self *decoder) decodeNextValidId(r *tokenReader, e *eventBuffer) {
	_ = r.readInt() // version
	orderId := r.readInt()
	e.emit(EventNextValidId, NextValidId{OrderId: orderId})
}

func (self *decoder) decodeAccountValue(r *tokenReader, e *eventBuffer) {
	version := r.readInt()
	value := AccountValue{}
	value.Key = r.readString()
	value.Value = r.readString()
	value.Currency = r.readString()
	if 2 <= version {
		value.Account = r.readString()
	}
	e.emit(EventAccountValue, value)
}

func (self *decoder) decodeAccountUpdateTime(r *tokenReader, e *eventBuffer) {
	_ = r.readInt() // version
	e.emit(EventAccountUpdateTime, AccountUpdateTime{Time: r.readString()})
}

func (self *decoder) decodeAccountDownloadEnd(r *tokenReader, e *eventBuffer) {
	_ = r.readInt() // version
	e.emit(EventAccountDownloadEnd, AccountDownloadEnd{Account: r.readString()})
}

func (self *decoder) decodeManagedAccounts(r *tokenReader, e *eventBuffer) {
	_ = r.readInt() // version
	joined := r.readString()
	accounts := []string{}
	if joined != "" {
		accounts = strings.Split(joined, ",")
	}
	e.emit(EventManagedAccounts, ManagedAccounts{Accounts: accounts})
}

func (self *decoder) decodeContractData(r *tokenReader, e *eventBuffer) {
	version := r.readInt()
	data := ContractData{}
	if 3 <= version {
		data.ReqId = r.readInt()
	} else {
		data.ReqId = NoRequestId
	}
	data.Contract.Symbol = r.readString()
	data.Contract.SecType = r.readString()
	data.Contract.Expiry = r.readString()
	data.Contract.Strike = r.readFloat()
	data.Contract.Right = r.readString()
	data.Contract.Exchange = r.readString()
	data.Contract.Currency = r.readString()
	data.Contract.LocalSymbol = r.readString()
	data.MarketName = r.readString()
	data.Contract.TradingClass = r.readString()
	data.Contract.ConId = r.readInt()
	data.MinTick = r.readFloat()
	data.Contract.Multiplier = r.readString()
	data.OrderTypes = r.readString()
	data.ValidExchanges = r.readString()
	if 4 <= version {
		data.LongName = r.readString()
		data.ContractMonth = r.readString()
	}
	e.emit(EventContractData, data)
}

func (self *decoder) decodeContractDataEnd(r *tokenReader, e *eventBuffer) {
	_ = r.readInt() // version
	reqId := r.readInt()
	e.emit(EventContractDataEnd, ContractDataEnd{ReqId: reqId})
}

func (self *decoder) decodeExecutionData(r *tokenReader, e *eventBuffer) {
	_ = r.readInt() // version
	execution := Execution{}
	execution.ReqId = r.readInt()
	execution.OrderId = r.readInt()
	execution.Contract.ConId = r.readInt()
	execution.Contract.Symbol = r.readString()
	execution.Contract.SecType = r.readString()
	execution.Contract.Expiry = r.readString()
	execution.Contract.Strike = r.readFloat()
	execution.Contract.Right = r.readString()
	execution.Contract.Exchange = r.readString()
	execution.Contract.Currency = r.readString()
	execution.Contract.LocalSymbol = r.readString()
	execution.ExecId = r.readString()
	execution.Time = r.readString()
	execution.Account = r.readString()
	execution.Exchange = r.readString()
	execution.Side = r.readString()
	if serverVerDecimalQty <= r.serverVersion {
		execution.Shares = r.readDecimal()
	} else {
		execution.Shares = Decimal(r.readFloat())
	}
	execution.Price = r.readFloat()
	execution.PermId = r.readInt()
	execution.ClientId = r.readInt()
	if serverVerDecimalQty <= r.serverVersion {
		execution.CumQty = r.readDecimal()
	} else {
		execution.CumQty = Decimal(r.readFloat())
	}
	execution.AvgPrice = r.readFloat()
	e.emit(EventExecution, execution)
}

func (self *decoder) decodeExecutionDataEnd(r *tokenReader, e *eventBuffer) {
	_ = r.readInt() // version
	reqId := r.readInt()
	e.emit(EventExecutionEnd, ExecutionEnd{ReqId: reqId})
}

func (self *decoder) decodeCommissionReport(r *tokenReader, e *eventBuffer) {
	_ = r.readInt() // version
	report := CommissionReport{}
	report.ExecId = r.readString()
	report.Commission = r.readFloat()
	report.Currency = r.readString()
	report.RealizedPnl = r.readFloat()
	e.emit(EventCommissionReport, report)
}

func (self *decoder) decodeMarketDepth(r *tokenReader, e *eventBuffer) {
	_ = r.readInt() // version
	depth := MarketDepth{}
	depth.ReqId = r.readInt()
	depth.Position = r.readInt()
	depth.Operation = r.readInt()
	depth.Side = r.readInt()
	depth.Price = r.readFloat()
	depth.Size = r.readDecimal()
	e.emit(EventMarketDepth, depth)
}

func (self *decoder) decodeMarketDepthL2(r *tokenReader, e *eventBuffer) {
	_ = r.readInt() // version
	depth := MarketDepthL2{}
	depth.ReqId = r.readInt()
	depth.Position = r.readInt()
	depth.MarketMaker = r.readString()
	depth.Operation = r.readInt()
	depth.Side = r.readInt()
	depth.Price = r.readFloat()
	depth.Size = r.readDecimal()
	if serverVerSmartDepth <= r.serverVersion {
		depth.IsSmartDepth = r.readBool()
	}
	e.emit(EventMarketDepthL2, depth)
}

func (self *decoder) decodePosition(r *tokenReader, e *eventBuffer) {
	version := r.readInt()
	position := Position{}
	position.Account = r.readString()
	position.Contract.ConId = r.readInt()
	position.Contract.Symbol = r.readString()
	position.Contract.SecType = r.readString()
	position.Contract.Expiry = r.readString()
	position.Contract.Strike = r.readFloat()
	position.Contract.Right = r.readString()
	position.Contract.Multiplier = r.readString()
	position.Contract.Exchange = r.readString()
	position.Contract.Currency = r.readString()
	position.Contract.LocalSymbol = r.readString()
	if 2 <= version {
		position.Contract.TradingClass = r.readString()
	}
	if serverVerDecimalQty <= r.serverVersion {
		position.Position = r.readDecimal()
	} else {
		position.Position = Decimal(r.readFloat())
	}
	if 3 <= version {
		position.AvgCost = r.readFloat()
	}
	e.emit(EventPosition, position)
}

func (self *decoder) decodePositionEnd(r *tokenReader, e *eventBuffer) {
	_ = r.readInt() // version
	e.emit(EventPositionEnd, PositionEnd{})
}

func (self *decoder) decodePnl(r *tokenReader, e *eventBuffer) {
	pnl := Pnl{}
	pnl.ReqId = r.readInt()
	pnl.DailyPnl = r.readFloat()
	pnl.UnrealizedPnl = r.readFloat()
	pnl.RealizedPnl = r.readFloat()
	e.emit(EventPnl, pnl)
}

func (self *decoder) decodePnlSingle(r *tokenReader, e *eventBuffer) {
	pnl := PnlSingle{}
	pnl.ReqId = r.readInt()
	pnl.Pos = r.readDecimal()
	pnl.DailyPnl = r.readFloat()
	pnl.UnrealizedPnl = r.readFloat()
	pnl.RealizedPnl = r.readFloat()
	pnl.Value = r.readFloat()
	e.emit(EventPnlSingle, pnl)
}

func (self *decoder) decodeTickByTick(r *tokenReader, e *eventBuffer) {
	reqId := r.readInt()
	tickType := r.readInt()
	tickTime := r.readLong()
	switch tickType {
	case 1, 2: // last, all-last
		tick := TickByTickAllLast{
			ReqId: reqId,
			Time:  tickTime,
		}
		tick.Price = r.readFloat()
		tick.Size = r.readDecimal()
		mask := r.readInt()
		tick.PastLimit = mask&1 != 0
		tick.Unreported = mask&2 != 0
		tick.Exchange = r.readString()
		tick.SpecialConditions = r.readString()
		e.emit(EventTickByTickAllLast, tick)
	case 3: // bid/ask
		tick := TickByTickBidAsk{
			ReqId: reqId,
			Time:  tickTime,
		}
		tick.BidPrice = r.readFloat()
		tick.AskPrice = r.readFloat()
		tick.BidSize = r.readDecimal()
		tick.AskSize = r.readDecimal()
		mask := r.readInt()
		tick.BidPastLow = mask&1 != 0
		tick.AskPastHigh = mask&2 != 0
		e.emit(EventTickByTickBidAsk, tick)
	case 4: // midpoint
		e.emit(EventTickByTickMidPoint, TickByTickMidPoint{
			ReqId:    reqId,
			Time:     tickTime,
			MidPoint: r.readFloat(),
		})
	default:
		r.fail(fmt.Errorf("unknown tick-by-tick type %d", tickType))
	}
}

func (self *decoder) decodeCurrentTime(r *tokenReader, e *eventBuffer) {
	_ = r.readInt() // version
	e.emit(EventCurrentTime, CurrentTime{Time: r.readLong()})
}

func (self *decoder) decodeHistoricalData(r *tokenReader, e *eventBuffer) {
	data := HistoricalData{}
	data.ReqId = r.readInt()
	data.Start = r.readString()
	data.End = r.readString()
	barCount := r.readInt()
	if r.err() != nil {
		return
	}
	for i := 0; i < barCount; i += 1 {
		bar := HistoricalBar{}
		bar.Time = r.readString()
		bar.Open = r.readFloat()
		bar.High = r.readFloat()
		bar.Low = r.readFloat()
		bar.Close = r.readFloat()
		bar.Volume = r.readDecimal()
		bar.Wap = r.readDecimal()
		bar.Count = r.readInt()
		if r.err() != nil {
			return
		}
		data.Bars = append(data.Bars, bar)
	}
	e.emit(EventHistoricalData, data)
	e.emit(EventHistoricalDataEnd, HistoricalDataEnd{
		ReqId: data.ReqId,
		Start: data.Start,
		End:   data.End,
	})
}
