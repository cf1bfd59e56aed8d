package tradewire

import (
	"fmt"
)

// encoder builds outgoing token arrays. Each builder mirrors the decoder's
// version gating in reverse: optional fields are appended only when the
// negotiated server version supports them, and requests for features the
// gateway predates fail before anything is queued.
type encoder struct {
	serverVersion int
}

func (self *encoder) setServerVersion(serverVersion int) {
	self.serverVersion = serverVersion
}

func (self *encoder) require(minVersion int, feature string) error {
	if self.serverVersion < minVersion {
		return fmt.Errorf("gateway version %d does not support %s (requires %d)", self.serverVersion, feature, minVersion)
	}
	return nil
}

func (self *encoder) contractArgs(contract Contract) []any {
	return []any{
		contract.ConId,
		contract.Symbol,
		contract.SecType,
		contract.Expiry,
		contract.Strike,
		contract.Right,
		contract.Multiplier,
		contract.Exchange,
		contract.Currency,
		contract.LocalSymbol,
		contract.TradingClass,
	}
}

func (self *encoder) startApi(clientId int, optionalCapabilities string) []any {
	const version = 2
	return []any{reqStartApi, version, clientId, optionalCapabilities}
}

func (self *encoder) reqCurrentTime() []any {
	const version = 1
	return []any{reqCurrentTime, version}
}

func (self *encoder) reqIds() []any {
	const version = 1
	// the gateway ignores the requested count; kept for wire compatibility
	return []any{reqIds, version, 1}
}

func (self *encoder) reqManagedAccounts() []any {
	const version = 1
	return []any{reqManagedAccounts, version}
}

func (self *encoder) reqMktData(reqId int, contract Contract, genericTickList string, snapshot bool) []any {
	const version = 11
	args := []any{reqMktData, version, reqId}
	args = append(args, self.contractArgs(contract)...)
	args = append(args, genericTickList, snapshot)
	return args
}

func (self *encoder) cancelMktData(reqId int) []any {
	const version = 2
	return []any{reqCancelMktData, version, reqId}
}

func (self *encoder) reqMktDepth(reqId int, contract Contract, numRows int, smartDepth bool) ([]any, error) {
	if smartDepth {
		if err := self.require(serverVerSmartDepth, "smart depth"); err != nil {
			return nil, err
		}
	}
	const version = 5
	args := []any{reqMktDepth, version, reqId}
	args = append(args, self.contractArgs(contract)...)
	args = append(args, numRows)
	if serverVerSmartDepth <= self.serverVersion {
		args = append(args, smartDepth)
	}
	return args, nil
}

func (self *encoder) cancelMktDepth(reqId int, smartDepth bool) []any {
	const version = 1
	args := []any{reqCancelMktDepth, version, reqId}
	if serverVerSmartDepth <= self.serverVersion {
		args = append(args, smartDepth)
	}
	return args
}

func (self *encoder) placeOrder(orderId int, contract Contract, order Order) ([]any, error) {
	if order.CashQty != 0 && order.CashQty != UnsetFloat {
		if err := self.require(serverVerCashQty, "cash quantity orders"); err != nil {
			return nil, err
		}
	}
	const version = 45
	args := []any{reqPlaceOrder, version, orderId}
	args = append(args, self.contractArgs(contract)...)
	args = append(args,
		order.Action,
		order.TotalQuantity,
		order.OrderType,
		order.LmtPrice,
		order.AuxPrice,
		order.Tif,
		order.OcaGroup,
		order.Account,
		order.DisplaySize,
		order.Hidden,
	)
	if serverVerCashQty <= self.serverVersion {
		args = append(args, order.CashQty)
	}
	return args, nil
}

func (self *encoder) cancelOrder(orderId int) []any {
	const version = 1
	return []any{reqCancelOrder, version, orderId}
}

func (self *encoder) reqOpenOrders() []any {
	const version = 1
	return []any{reqOpenOrders, version}
}

func (self *encoder) reqCompletedOrders(apiOnly bool) ([]any, error) {
	if err := self.require(serverVerCompletedOrders, "completed orders"); err != nil {
		return nil, err
	}
	return []any{reqCompletedOrders, apiOnly}, nil
}

func (self *encoder) reqAccountUpdates(subscribe bool, account string) []any {
	const version = 2
	return []any{reqAccountData, version, subscribe, account}
}

func (self *encoder) reqExecutions(reqId int, clientId int, account string) []any {
	const version = 3
	// unused filter columns stay on the wire as empty tokens
	return []any{reqExecutions, version, reqId, clientId, account, "", "", "", "", ""}
}

func (self *encoder) reqContractData(reqId int, contract Contract) []any {
	const version = 8
	args := []any{reqContractData, version, reqId}
	args = append(args, self.contractArgs(contract)...)
	return args
}

func (self *encoder) reqPositions() ([]any, error) {
	if err := self.require(serverVerPnl, "position streams"); err != nil {
		return nil, err
	}
	const version = 1
	return []any{reqPositions, version}, nil
}

func (self *encoder) cancelPositions() []any {
	const version = 1
	return []any{reqCancelPositions, version}
}

func (self *encoder) reqPnl(reqId int, account string, modelCode string) ([]any, error) {
	if err := self.require(serverVerPnl, "pnl streams"); err != nil {
		return nil, err
	}
	return []any{reqPnl, reqId, account, modelCode}, nil
}

func (self *encoder) cancelPnl(reqId int) []any {
	return []any{reqCancelPnl, reqId}
}

func (self *encoder) reqPnlSingle(reqId int, account string, modelCode string, conId int) ([]any, error) {
	if err := self.require(serverVerPnl, "single-position pnl streams"); err != nil {
		return nil, err
	}
	return []any{reqPnlSingle, reqId, account, modelCode, conId}, nil
}

func (self *encoder) cancelPnlSingle(reqId int) []any {
	return []any{reqCancelPnlSingle, reqId}
}

func (self *encoder) reqTickByTickData(reqId int, contract Contract, tickType string, numberOfTicks int, ignoreSize bool) ([]any, error) {
	if err := self.require(serverVerTickByTick, "tick-by-tick streams"); err != nil {
		return nil, err
	}
	args := []any{reqTickByTickData, reqId}
	args = append(args, self.contractArgs(contract)...)
	args = append(args, tickType)
	if serverVerTickByTickIgnore <= self.serverVersion {
		args = append(args, numberOfTicks, ignoreSize)
	}
	return args, nil
}

func (self *encoder) cancelTickByTickData(reqId int) []any {
	return []any{reqCancelTickByTick, reqId}
}

func (self *encoder) reqHistoricalData(reqId int, contract Contract, endDateTime string, duration string, barSize string, whatToShow string, useRth bool) []any {
	args := []any{reqHistoricalData, reqId}
	args = append(args, self.contractArgs(contract)...)
	args = append(args, endDateTime, barSize, duration, useRth, whatToShow)
	return args
}
