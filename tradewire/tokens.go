package tradewire

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// errUnderrun marks a read past the end of the current message's tokens.
// It is the one recoverable decode failure: in legacy mode it means "wait
// for more bytes", in length-prefixed mode it means the message is
// malformed and gets drained.
var errUnderrun = errors.New("token stream underrun")

const (
	tokenKindField = iota
	// boundary markers wrap each length-prefixed message so leftover or
	// missing tokens can be detected after dispatch
	tokenKindStart
	tokenKindEnd
)

type queuedToken struct {
	kind  int
	value string
}

// tokenQueue is the decoder's inbound processing queue. The framer pushes
// whole messages (bounded) or raw token runs (legacy), and the decoder
// consumes them sequentially with rollback support for legacy underruns.
type tokenQueue struct {
	items []queuedToken
	pos   int
}

func newTokenQueue() *tokenQueue {
	return &tokenQueue{}
}

func (self *tokenQueue) pushMessage(tokens []string) {
	self.items = append(self.items, queuedToken{kind: tokenKindStart})
	for _, token := range tokens {
		self.items = append(self.items, queuedToken{kind: tokenKindField, value: token})
	}
	self.items = append(self.items, queuedToken{kind: tokenKindEnd})
}

func (self *tokenQueue) pushTokens(tokens []string) {
	for _, token := range tokens {
		self.items = append(self.items, queuedToken{kind: tokenKindField, value: token})
	}
}

func (self *tokenQueue) empty() bool {
	return self.pos >= len(self.items)
}

func (self *tokenQueue) mark() int {
	return self.pos
}

func (self *tokenQueue) restore(mark int) {
	self.pos = mark
}

// compact drops the consumed prefix. Called between messages to keep the
// queue from growing for the life of the connection.
func (self *tokenQueue) compact() {
	if self.pos == 0 {
		return
	}
	self.items = append(self.items[:0], self.items[self.pos:]...)
	self.pos = 0
}

func (self *tokenQueue) next() (queuedToken, bool) {
	if self.pos >= len(self.items) {
		return queuedToken{}, false
	}
	item := self.items[self.pos]
	self.pos += 1
	return item, true
}

func (self *tokenQueue) peek() (queuedToken, bool) {
	if self.pos >= len(self.items) {
		return queuedToken{}, false
	}
	return self.items[self.pos], true
}

// skipToEnd drains the remainder of the current bounded message, consuming
// the end marker. In legacy mode it drains everything queued.
func (self *tokenQueue) skipToEnd() {
	for {
		item, ok := self.next()
		if !ok {
			return
		}
		if item.kind == tokenKindEnd {
			return
		}
	}
}

// tokenReader reads one message's tokens with the wire type semantics.
// Errors are sticky: after the first failed read every subsequent read
// returns the zero value, so decode routines can run their full
// version-gated sequence and check err() once at the end.
type tokenReader struct {
	queue         *tokenQueue
	serverVersion int
	readErr       error
}

func (self *tokenReader) err() error {
	return self.readErr
}

func (self *tokenReader) fail(err error) {
	if self.readErr == nil {
		self.readErr = err
	}
}

func (self *tokenReader) readToken() string {
	if self.readErr != nil {
		return ""
	}
	item, ok := self.queue.peek()
	if !ok || item.kind != tokenKindField {
		self.fail(errUnderrun)
		return ""
	}
	self.queue.next()
	return item.value
}

func (self *tokenReader) readString() string {
	return self.readToken()
}

func (self *tokenReader) readBool() bool {
	token := self.readToken()
	if self.readErr != nil {
		return false
	}
	value, err := strconv.Atoi(token)
	if err != nil {
		self.fail(fmt.Errorf("bad bool token %q: %w", token, err))
		return false
	}
	return value != 0
}

func (self *tokenReader) readInt() int {
	token := self.readToken()
	if self.readErr != nil || token == "" {
		return 0
	}
	value, err := strconv.Atoi(token)
	if err != nil {
		self.fail(fmt.Errorf("bad int token %q: %w", token, err))
		return 0
	}
	if value == UnsetInt {
		return UnsetInt
	}
	return value
}

func (self *tokenReader) readLong() int64 {
	token := self.readToken()
	if self.readErr != nil || token == "" {
		return 0
	}
	value, err := strconv.ParseInt(token, 10, 64)
	if err != nil {
		self.fail(fmt.Errorf("bad long token %q: %w", token, err))
		return 0
	}
	return value
}

func (self *tokenReader) readFloat() float64 {
	token := self.readToken()
	if self.readErr != nil || token == "" {
		return 0
	}
	value, err := strconv.ParseFloat(token, 64)
	if err != nil {
		self.fail(fmt.Errorf("bad float token %q: %w", token, err))
		return 0
	}
	if value == UnsetFloat {
		return UnsetFloat
	}
	return value
}

func (self *tokenReader) readDecimal() Decimal {
	token := self.readToken()
	if self.readErr != nil || token == "" {
		return UnsetDecimal
	}
	// quantities can arrive with grouping separators, e.g. "1,000,000"
	token = strings.ReplaceAll(token, ",", "")
	value, err := strconv.ParseFloat(token, 64)
	if err != nil {
		self.fail(fmt.Errorf("bad decimal token %q: %w", token, err))
		return UnsetDecimal
	}
	if value == UnsetFloat || value == float64(UnsetInt) || value == float64(UnsetLong) {
		return UnsetDecimal
	}
	return Decimal(value)
}

// readText reads a string field, unescaping embedded \uXXXX sequences when
// the negotiated session is in ASCII-7 encoding.
func (self *tokenReader) readText() string {
	token := self.readToken()
	if self.serverVersion >= serverVerEncodeMsgASCII7 {
		return decodeUnicodeEscapes(token)
	}
	return token
}

func decodeUnicodeEscapes(s string) string {
	if !strings.Contains(s, "\\u") {
		return s
	}
	var out strings.Builder
	out.Grow(len(s))
	for i := 0; i < len(s); {
		if s[i] == '\\' && i+5 < len(s) && s[i+1] == 'u' {
			if code, err := strconv.ParseUint(s[i+2:i+6], 16, 32); err == nil {
				out.WriteRune(rune(code))
				i += 6
				continue
			}
		}
		out.WriteByte(s[i])
		i += 1
	}
	return out.String()
}

// flattenTokens turns an outgoing request's argument list into wire tokens.
// Nested slices are flattened in order, booleans become "0"/"1", and the
// unset sentinels encode as the empty token.
func flattenTokens(args []any) ([]string, error) {
	tokens := []string{}
	var flatten func(arg any) error
	flatten = func(arg any) error {
		switch v := arg.(type) {
		case string:
			tokens = append(tokens, v)
		case bool:
			if v {
				tokens = append(tokens, "1")
			} else {
				tokens = append(tokens, "0")
			}
		case int:
			if v == UnsetInt {
				tokens = append(tokens, "")
			} else {
				tokens = append(tokens, strconv.Itoa(v))
			}
		case int64:
			if v == UnsetLong {
				tokens = append(tokens, "")
			} else {
				tokens = append(tokens, strconv.FormatInt(v, 10))
			}
		case float64:
			if v == UnsetFloat {
				tokens = append(tokens, "")
			} else {
				tokens = append(tokens, strconv.FormatFloat(v, 'g', -1, 64))
			}
		case Decimal:
			if v == UnsetDecimal {
				tokens = append(tokens, "")
			} else {
				tokens = append(tokens, strconv.FormatFloat(float64(v), 'g', -1, 64))
			}
		case []string:
			for _, item := range v {
				tokens = append(tokens, item)
			}
		case []any:
			for _, item := range v {
				if err := flatten(item); err != nil {
					return err
				}
			}
		case nil:
			tokens = append(tokens, "")
		default:
			return fmt.Errorf("cannot encode token of type %T", arg)
		}
		return nil
	}
	for _, arg := range args {
		if err := flatten(arg); err != nil {
			return nil, err
		}
	}
	return tokens, nil
}
