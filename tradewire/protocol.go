package tradewire

// Inbound message ids. The first token of every inbound payload selects one
// of these.
const (
	msgTickPrice          = 1
	msgTickSize           = 2
	msgOrderStatus        = 3
	msgErrMsg             = 4
	msgOpenOrder          = 5
	msgAccountValue       = 6
	msgAccountUpdateTime  = 8
	msgNextValidId        = 9
	msgContractData       = 10
	msgExecutionData      = 11
	msgMarketDepth        = 12
	msgMarketDepthL2      = 13
	msgManagedAccounts    = 15
	msgHistoricalData     = 17
	msgTickGeneric        = 45
	msgTickString         = 46
	msgCurrentTime        = 49
	msgContractDataEnd    = 52
	msgOpenOrderEnd       = 53
	msgAccountDownloadEnd = 54
	msgExecutionDataEnd   = 55
	msgTickSnapshotEnd    = 57
	msgMarketDataType     = 58
	msgCommissionReport   = 59
	msgPosition           = 61
	msgPositionEnd        = 62
	msgPnl                = 94
	msgPnlSingle          = 95
	msgTickByTick         = 99
	msgCompletedOrder     = 101
	msgCompletedOrdersEnd = 102
)

// Outbound message ids, a disjoint numeric space from the inbound ids.
const (
	reqMktData          = 1
	reqCancelMktData    = 2
	reqPlaceOrder       = 3
	reqCancelOrder      = 4
	reqOpenOrders       = 5
	reqAccountData      = 6
	reqExecutions       = 7
	reqIds              = 8
	reqContractData     = 9
	reqMktDepth         = 10
	reqCancelMktDepth   = 11
	reqManagedAccounts  = 17
	reqHistoricalData   = 20
	reqCurrentTime      = 49
	reqPositions        = 61
	reqCancelPositions  = 64
	reqStartApi         = 71
	reqPnl              = 92
	reqCancelPnl        = 93
	reqPnlSingle        = 94
	reqCancelPnlSingle  = 95
	reqTickByTickData   = 97
	reqCancelTickByTick = 98
	reqCompletedOrders  = 99
)

// Protocol version range this client can negotiate. The handshake offers
// the whole range and the gateway picks the highest version it supports.
const (
	MinClientVersion = 100
	MaxClientVersion = 187
)

// Feature gates. A field guarded by one of these is only on the wire when
// the negotiated server version reaches the threshold.
const (
	serverVerPriceMgmtAlgo       = 151
	serverVerMarketCapPrice      = 156
	serverVerDecimalQty          = 160
	serverVerSmartDepth          = 146
	serverVerTickSizeDecimal     = 163
	serverVerEncodeMsgASCII7     = 166
	serverVerCashQty             = 111
	serverVerPnl                 = 132
	serverVerTickByTick          = 137
	serverVerTickByTickIgnore    = 140
	serverVerCompletedOrders     = 150
	serverVerAdvancedOrderReject = 168
)

// Tick field identifiers referenced by the decoder's synthetic size events.
const (
	tickTypeBidSize  = 0
	tickTypeBid      = 1
	tickTypeAsk      = 2
	tickTypeAskSize  = 3
	tickTypeLast     = 4
	tickTypeLastSize = 5
)

// messageName maps inbound ids to the event name used in diagnostics for
// that message type.
func messageName(msgId int) EventName {
	switch msgId {
	case msgTickPrice:
		return EventTickPrice
	case msgTickSize:
		return EventTickSize
	case msgOrderStatus:
		return EventOrderStatus
	case msgErrMsg:
		return EventError
	case msgOpenOrder:
		return EventOpenOrder
	case msgAccountValue:
		return EventAccountValue
	case msgAccountUpdateTime:
		return EventAccountUpdateTime
	case msgNextValidId:
		return EventNextValidId
	case msgContractData:
		return EventContractData
	case msgExecutionData:
		return EventExecution
	case msgMarketDepth:
		return EventMarketDepth
	case msgMarketDepthL2:
		return EventMarketDepthL2
	case msgManagedAccounts:
		return EventManagedAccounts
	case msgHistoricalData:
		return EventHistoricalData
	case msgTickGeneric:
		return EventTickGeneric
	case msgTickString:
		return EventTickString
	case msgCurrentTime:
		return EventCurrentTime
	case msgContractDataEnd:
		return EventContractDataEnd
	case msgOpenOrderEnd:
		return EventOpenOrderEnd
	case msgAccountDownloadEnd:
		return EventAccountDownloadEnd
	case msgExecutionDataEnd:
		return EventExecutionEnd
	case msgTickSnapshotEnd:
		return EventTickSnapshotEnd
	case msgMarketDataType:
		return EventMarketDataType
	case msgCommissionReport:
		return EventCommissionReport
	case msgPosition:
		return EventPosition
	case msgPositionEnd:
		return EventPositionEnd
	case msgPnl:
		return EventPnl
	case msgPnlSingle:
		return EventPnlSingle
	case msgTickByTick:
		return EventTickByTickAllLast
	case msgCompletedOrder:
		return EventCompletedOrder
	case msgCompletedOrdersEnd:
		return EventCompletedOrdersEnd
	default:
		return EventName("")
	}
}
