package playground

import "github.com/yubzen/playground/internal/providers"

const (
	ReasonLoading   = "Loading LLM connections…"
	ReasonProvider  = "Select a provider"
	ReasonModel     = "Select or type a model"
	ReasonNoContent = "Add at least one message"
)

// Selection is the provider/adapter/model chosen for a panel.
type Selection struct {
	Provider string
	Adapter  string
	Model    string
}

func (s Selection) IsZero() bool { return s == Selection{} }

// MenuItem is one entry of the saved-models menu.
type MenuItem struct {
	ID         string
	Connection providers.Connection
	Model      string
	Active     bool
}

// CurrentConnection finds the first connection matching the selection's
// provider and adapter.
func CurrentConnection(conns []providers.Connection, sel Selection) (providers.Connection, bool) {
	for _, c := range conns {
		if c.Matches(sel.Provider, sel.Adapter) {
			return c, true
		}
	}
	return providers.Connection{}, false
}

// AvailableModels lists the custom models of the current connection.
func AvailableModels(conns []providers.Connection, sel Selection) []string {
	c, ok := CurrentConnection(conns, sel)
	if !ok {
		return nil
	}
	return append([]string(nil), c.CustomModels...)
}

// MenuItems flattens every (connection, custom model) pair in order.
func MenuItems(conns []providers.Connection, sel Selection) []MenuItem {
	var items []MenuItem
	for _, c := range conns {
		for _, m := range c.CustomModels {
			items = append(items, MenuItem{
				ID:         c.ID + "::" + m,
				Connection: c,
				Model:      m,
				Active:     c.Matches(sel.Provider, sel.Adapter) && m == sel.Model,
			})
		}
	}
	return items
}

// SelectionFor selects exactly the given connection and model.
func SelectionFor(c providers.Connection, model string) Selection {
	return Selection{Provider: c.Provider, Adapter: c.Adapter, Model: model}
}

// initialSelection is the selection implied by a fresh discovery result.
func initialSelection(conns []providers.Connection) Selection {
	if len(conns) == 0 {
		return Selection{}
	}
	first := conns[0]
	sel := Selection{Provider: first.Provider, Adapter: first.Adapter}
	if len(first.CustomModels) > 0 {
		sel.Model = first.CustomModels[0]
	}
	return sel
}

// DisabledReason explains why submission is unavailable, or returns "".
func DisabledReason(loading bool, sel Selection, hasContent bool) string {
	switch {
	case loading:
		return ReasonLoading
	case sel.Provider == "":
		return ReasonProvider
	case sel.Model == "":
		return ReasonModel
	case !hasContent:
		return ReasonNoContent
	default:
		return ""
	}
}
