package tradewire

// orderReader is the shared step-wise reader for the order object. The
// open-order and completed-order messages carry the same conditional field
// groups in slightly different sequences, so each decode routine invokes
// exactly the steps its layout names, in its own order, against one shared
// implementation of the version gates.
type orderReader struct {
	r       *tokenReader
	version int

	order    Order
	contract Contract
}

func newOrderReader(r *tokenReader, version int) *orderReader {
	return &orderReader{
		r:       r,
		version: version,
	}
}

func (self *orderReader) readOrderId() {
	self.order.OrderId = self.r.readInt()
}

func (self *orderReader) readContract() {
	self.contract.ConId = self.r.readInt()
	self.contract.Symbol = self.r.readString()
	self.contract.SecType = self.r.readString()
	self.contract.Expiry = self.r.readString()
	self.contract.Strike = self.r.readFloat()
	self.contract.Right = self.r.readString()
	self.contract.Multiplier = self.r.readString()
	self.contract.Exchange = self.r.readString()
	self.contract.Currency = self.r.readString()
	self.contract.LocalSymbol = self.r.readString()
	self.contract.TradingClass = self.r.readString()
}

func (self *orderReader) readAction() {
	self.order.Action = self.r.readString()
}

func (self *orderReader) readQuantity() {
	if serverVerDecimalQty <= self.r.serverVersion {
		self.order.TotalQuantity = self.r.readDecimal()
	} else {
		self.order.TotalQuantity = Decimal(self.r.readFloat())
	}
}

func (self *orderReader) readOrderType() {
	self.order.OrderType = self.r.readString()
}

func (self *orderReader) readPrices() {
	self.order.LmtPrice = self.r.readFloat()
	self.order.AuxPrice = self.r.readFloat()
}

func (self *orderReader) readTimeInForce() {
	self.order.Tif = self.r.readString()
}

func (self *orderReader) readOcaGroup() {
	self.order.OcaGroup = self.r.readString()
}

func (self *orderReader) readAccount() {
	self.order.Account = self.r.readString()
}

func (self *orderReader) readCorrelationIds() {
	self.order.PermId = self.r.readInt()
	self.order.ParentId = self.r.readInt()
}

func (self *orderReader) readDisplay() {
	self.order.DisplaySize = self.r.readInt()
	self.order.Hidden = self.r.readBool()
}

func (self *orderReader) readCashQty() {
	if serverVerCashQty <= self.r.serverVersion {
		self.order.CashQty = self.r.readFloat()
	}
}

func (self *orderReader) readStatus() {
	self.order.Status = self.r.readString()
}

func (self *orderReader) readCompleted() {
	self.order.PermId = self.r.readInt()
	self.order.Status = self.r.readString()
	self.order.CompletedTime = self.r.readString()
	self.order.CompletedStatus = self.r.readString()
}
