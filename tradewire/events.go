package tradewire

import (
	"math"
)

// Sentinel values the gateway uses for "no value". A token equal to the
// sentinel decodes to the unset constant, which is distinct from zero.
const (
	UnsetInt     = int(math.MaxInt32)
	UnsetLong    = int64(math.MaxInt64)
	UnsetFloat   = math.MaxFloat64
	UnsetDecimal = Decimal(math.MaxFloat64)
)

// Decimal is a fractional quantity. Unlike a plain float field, an empty
// token decodes to UnsetDecimal rather than zero.
type Decimal float64

// NoRequestId marks gateway errors that are connection-scoped rather than
// tied to an outstanding request.
const NoRequestId = -1

type EventName string

// meta events, never forwarded to the generic taps
const (
	EventConnected       EventName = "connected"
	EventDisconnected    EventName = "disconnected"
	EventError           EventName = "error"
	EventInfo            EventName = "info"
	EventRawDataSent     EventName = "rawDataSent"
	EventRawDataReceived EventName = "rawDataReceived"
	EventServerVersion   EventName = "serverVersion"
)

const (
	EventTickPrice          EventName = "tickPrice"
	EventTickSize           EventName = "tickSize"
	EventTickString         EventName = "tickString"
	EventTickGeneric        EventName = "tickGeneric"
	EventTickSnapshotEnd    EventName = "tickSnapshotEnd"
	EventMarketDataType     EventName = "marketDataType"
	EventOrderStatus        EventName = "orderStatus"
	EventOpenOrder          EventName = "openOrder"
	EventOpenOrderEnd       EventName = "openOrderEnd"
	EventCompletedOrder     EventName = "completedOrder"
	EventCompletedOrdersEnd EventName = "completedOrdersEnd"
	EventNextValidId        EventName = "nextValidId"
	EventAccountValue       EventName = "accountValue"
	EventAccountUpdateTime  EventName = "accountUpdateTime"
	EventAccountDownloadEnd EventName = "accountDownloadEnd"
	EventManagedAccounts    EventName = "managedAccounts"
	EventContractData       EventName = "contractData"
	EventContractDataEnd    EventName = "contractDataEnd"
	EventExecution          EventName = "execution"
	EventExecutionEnd       EventName = "executionEnd"
	EventCommissionReport   EventName = "commissionReport"
	EventMarketDepth        EventName = "marketDepth"
	EventMarketDepthL2      EventName = "marketDepthL2"
	EventPosition           EventName = "position"
	EventPositionEnd        EventName = "positionEnd"
	EventPnl                EventName = "pnl"
	EventPnlSingle          EventName = "pnlSingle"
	EventTickByTickAllLast  EventName = "tickByTickAllLast"
	EventTickByTickBidAsk   EventName = "tickByTickBidAsk"
	EventTickByTickMidPoint EventName = "tickByTickMidPoint"
	EventCurrentTime        EventName = "currentTime"
	EventHistoricalData     EventName = "historicalData"
	EventHistoricalDataEnd  EventName = "historicalDataEnd"
)

// metaEvents are excluded from the generic fan-out taps so that a tap
// republishing into the controller cannot feed back into itself.
var metaEvents = map[EventName]bool{
	EventConnected:       true,
	EventDisconnected:    true,
	EventError:           true,
	EventInfo:            true,
	EventRawDataSent:     true,
	EventRawDataReceived: true,
	EventServerVersion:   true,
}

// RequestScoped is implemented by event payloads that correlate to an
// outstanding request id. The subscription registry uses it to route
// events to the owning subscription.
type RequestScoped interface {
	RequestId() int
}

type ServerInfo struct {
	Version        int
	ConnectionTime string
}

type Connected struct{}

type Disconnected struct {
	// set when the connection dropped rather than being closed locally
	Err error
}

type RawData struct {
	Bytes []byte
}

type ApiError struct {
	ReqId   int
	Code    int
	Message string
	// advisory JSON attached to order rejections, already unescaped
	AdvancedOrderReject string
}

func (self ApiError) RequestId() int {
	return self.ReqId
}

type TickPrice struct {
	ReqId    int
	TickType int
	Price    float64
	Size     Decimal
	// set when the gateway marks the tick as eligible for automated execution
	CanAutoExecute bool
	PastLimit      bool
	PreOpen        bool
}

func (self TickPrice) RequestId() int {
	return self.ReqId
}

type TickSize struct {
	ReqId    int
	TickType int
	Size     Decimal
}

func (self TickSize) RequestId() int {
	return self.ReqId
}

type TickString struct {
	ReqId    int
	TickType int
	Value    string
}

func (self TickString) RequestId() int {
	return self.ReqId
}

type TickGeneric struct {
	ReqId    int
	TickType int
	Value    float64
}

func (self TickGeneric) RequestId() int {
	return self.ReqId
}

type TickSnapshotEnd struct {
	ReqId int
}

func (self TickSnapshotEnd) RequestId() int {
	return self.ReqId
}

type MarketDataType struct {
	ReqId    int
	DataType int
}

func (self MarketDataType) RequestId() int {
	return self.ReqId
}

type OrderStatus struct {
	Status        string
	Filled        Decimal
	Remaining     Decimal
	AvgFillPrice  float64
	PermId        int
	ParentId      int
	LastFillPrice float64
	ClientId      int
	WhyHeld       string
	MktCapPrice   float64
}

// Order carries the conditionally-present order fields shared by the
// open-order and completed-order messages.
type Order struct {
	OrderId       int
	Account       string
	Action        string
	TotalQuantity Decimal
	OrderType     string
	LmtPrice      float64
	AuxPrice      float64
	Tif           string
	OcaGroup      string
	PermId        int
	ParentId      int
	DisplaySize   int
	Hidden        bool
	CashQty       float64
	Status        string
	CompletedTime string
	// free-form reason attached by the gateway on completed orders
	CompletedStatus string
}

type OpenOrder struct {
	Order    Order
	Contract Contract
}

type OpenOrderEnd struct{}

type CompletedOrder struct {
	Order    Order
	Contract Contract
}

type CompletedOrdersEnd struct{}

type Contract struct {
	ConId        int
	Symbol       string
	SecType      string
	Expiry       string
	Strike       float64
	Right        string
	Multiplier   string
	Exchange     string
	Currency     string
	LocalSymbol  string
	TradingClass string
}

type NextValidId struct {
	OrderId int
}

type AccountValue struct {
	Key      string
	Value    string
	Currency string
	Account  string
}

type AccountUpdateTime struct {
	Time string
}

type AccountDownloadEnd struct {
	Account string
}

type ManagedAccounts struct {
	Accounts []string
}

type ContractData struct {
	ReqId          int
	Contract       Contract
	MarketName     string
	MinTick        float64
	OrderTypes     string
	ValidExchanges string
	LongName       string
	ContractMonth  string
}

func (self ContractData) RequestId() int {
	return self.ReqId
}

type ContractDataEnd struct {
	ReqId int
}

func (self ContractDataEnd) RequestId() int {
	return self.ReqId
}

type Execution struct {
	ReqId    int
	OrderId  int
	Contract Contract
	ExecId   string
	Time     string
	Account  string
	Exchange string
	Side     string
	Shares   Decimal
	Price    float64
	PermId   int
	ClientId int
	CumQty   Decimal
	AvgPrice float64
}

func (self Execution) RequestId() int {
	return self.ReqId
}

type ExecutionEnd struct {
	ReqId int
}

func (self ExecutionEnd) RequestId() int {
	return self.ReqId
}

type CommissionReport struct {
	ExecId      string
	Commission  float64
	Currency    string
	RealizedPnl float64
}

type MarketDepth struct {
	ReqId     int
	Position  int
	Operation int
	Side      int
	Price     float64
	Size      Decimal
}

func (self MarketDepth) RequestId() int {
	return self.ReqId
}

type MarketDepthL2 struct {
	ReqId        int
	Position     int
	MarketMaker  string
	Operation    int
	Side         int
	Price        float64
	Size         Decimal
	IsSmartDepth bool
}

func (self MarketDepthL2) RequestId() int {
	return self.ReqId
}

type Position struct {
	Account  string
	Contract Contract
	Position Decimal
	AvgCost  float64
}

type PositionEnd struct{}

type Pnl struct {
	ReqId         int
	DailyPnl      float64
	UnrealizedPnl float64
	RealizedPnl   float64
}

func (self Pnl) RequestId() int {
	return self.ReqId
}

type PnlSingle struct {
	ReqId         int
	Pos           Decimal
	DailyPnl      float64
	UnrealizedPnl float64
	RealizedPnl   float64
	Value         float64
}

func (self PnlSingle) RequestId() int {
	return self.ReqId
}

// Tick-by-tick trade report. Covers both the "Last" and "AllLast" stream
// variants; the two differ only in which trades the gateway includes.
type TickByTickAllLast struct {
	ReqId             int
	Time              int64
	Price             float64
	Size              Decimal
	PastLimit         bool
	Unreported        bool
	Exchange          string
	SpecialConditions string
}

func (self TickByTickAllLast) RequestId() int {
	return self.ReqId
}

type TickByTickBidAsk struct {
	ReqId       int
	Time        int64
	BidPrice    float64
	AskPrice    float64
	BidSize     Decimal
	AskSize     Decimal
	BidPastLow  bool
	AskPastHigh bool
}

func (self TickByTickBidAsk) RequestId() int {
	return self.ReqId
}

type TickByTickMidPoint struct {
	ReqId    int
	Time     int64
	MidPoint float64
}

func (self TickByTickMidPoint) RequestId() int {
	return self.ReqId
}

type CurrentTime struct {
	Time int64
}

type HistoricalBar struct {
	Time   string
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume Decimal
	Wap    Decimal
	Count  int
}

type HistoricalData struct {
	ReqId int
	Start string
	End   string
	Bars  []HistoricalBar
}

func (self HistoricalData) RequestId() int {
	return self.ReqId
}

type HistoricalDataEnd struct {
	ReqId int
	Start string
	End   string
}

func (self HistoricalDataEnd) RequestId() int {
	return self.ReqId
}
