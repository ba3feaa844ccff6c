package telegram

import (
	"fmt"
	"strconv"
	"strings"
)

// Command is the closed set of actions the bot understands, parsed from deep
// link payloads and inline keyboard callbacks.
type Command interface {
	isCommand()
}

// Start is the /start command, optionally carrying a campaign keyword or a
// referral link payload.
type Start struct {
	UtmKeyword string
	ReferrerID int64
}

// Approve is an operator decision on an order.
type Approve struct {
	OrderID int64
}

// Reject is an operator decision on an order.
type Reject struct {
	OrderID int64
}

// Code is a buyer's request for a one-time login code.
type Code struct {
	OrderID int64
}

func (Start) isCommand()   {}
func (Approve) isCommand() {}
func (Reject) isCommand()  {}
func (Code) isCommand()    {}

// ParseStart decodes a /start deep link payload. "utm_<keyword>" attributes
// the contact to a campaign, "ref<id>" attributes it to a referrer, anything
// else is a plain start.
func ParseStart(payload string) Start {
	switch {
	case strings.HasPrefix(payload, "utm_"):
		return Start{UtmKeyword: strings.TrimPrefix(payload, "utm_")}
	case strings.HasPrefix(payload, "ref"):
		id, err := strconv.ParseInt(strings.TrimPrefix(payload, "ref"), 10, 64)
		if err != nil || id < 1 {
			return Start{}
		}
		return Start{ReferrerID: id}
	default:
		return Start{}
	}
}

// ParseCallback decodes inline keyboard callback data of the form
// "<action>:<order id>".
func ParseCallback(data string) (Command, error) {
	action, rawID, ok := strings.Cut(data, ":")
	if !ok {
		return nil, fmt.Errorf("malformed callback data %q", data)
	}
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || id < 1 {
		return nil, fmt.Errorf("malformed order id in callback data %q", data)
	}

	switch action {
	case "approve":
		return Approve{OrderID: id}, nil
	case "reject":
		return Reject{OrderID: id}, nil
	case "code":
		return Code{OrderID: id}, nil
	default:
		return nil, fmt.Errorf("unknown callback action %q", action)
	}
}

// CallbackData renders the callback payload for an action button.
func CallbackData(action string, orderID int64) string {
	return fmt.Sprintf("%s:%d", action, orderID)
}
