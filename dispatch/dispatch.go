// Package dispatch maps a parsed Terrapipe request onto keyspace
// operations and builds the response frame: TDB's action table.
package dispatch

import (
	"strconv"

	"github.com/terrabasedb/tdb/keyspace"
	"github.com/terrabasedb/tdb/metrics"
	"github.com/terrabasedb/tdb/terrapipe"
)

// Dispatcher executes one action verb at a time against a Keyspace: every
// verb gets the same call shape, and every failure mode becomes part of
// the return value rather than a distinct code path per verb.
type Dispatcher struct {
	ks *keyspace.Keyspace
	m  *metrics.Metrics
}

// New builds a Dispatcher over ks. m may be nil to disable metrics.
func New(ks *keyspace.Keyspace, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{ks: ks, m: m}
}

// Dispatch executes req and returns the response frame. It never returns an
// error: every failure mode the action table can produce -- bad arity, an
// empty key, an unknown verb, a miss -- is an in-band response code, not a
// transport fault.
func (d *Dispatcher) Dispatch(req *terrapipe.Frame) *terrapipe.Frame {
	verb := req.Verb()
	args := req.Args()

	switch verb {
	case "HEYA":
		return d.heya(args)
	case "GET":
		return d.get(args)
	case "MGET":
		return d.mget(args)
	case "SET":
		return d.set(args)
	case "MSET":
		return d.mset(args)
	case "UPDATE":
		return d.update(args)
	case "MUPDATE":
		return d.mupdate(args)
	case "EXISTS":
		return d.exists(args)
	case "DEL":
		return d.del(args)
	default:
		d.m.IncUnknownAction()
		return terrapipe.NewResponse(terrapipe.CodeUnknownAction)
	}
}

func (d *Dispatcher) actionError() *terrapipe.Frame {
	d.m.IncActionError()
	return terrapipe.NewResponse(terrapipe.CodeActionError)
}

func (d *Dispatcher) heya(args terrapipe.DataGroup) *terrapipe.Frame {
	if len(args) != 0 {
		return d.actionError()
	}
	d.m.IncOp("HEYA")
	return terrapipe.NewResponse(terrapipe.CodeOkay, terrapipe.DataGroup{[]byte("HEY!")})
}

func (d *Dispatcher) get(args terrapipe.DataGroup) *terrapipe.Frame {
	if len(args) != 1 || !validKey(args[0]) {
		return d.actionError()
	}
	d.m.IncOp("GET")

	v, ok := d.ks.Get(string(args[0]))
	if !ok {
		d.m.IncMiss()
		return terrapipe.NewResponse(terrapipe.CodeNil)
	}
	d.m.IncHit()
	return terrapipe.NewResponse(terrapipe.CodeOkay, terrapipe.DataGroup{v})
}

func (d *Dispatcher) mget(args terrapipe.DataGroup) *terrapipe.Frame {
	if len(args) < 1 || !allValidKeys(args) {
		return d.actionError()
	}
	d.m.IncOp("MGET")

	results := make([]terrapipe.DataGroup, 0, len(args))
	for _, k := range args {
		v, ok := d.ks.Get(string(k))
		if !ok {
			d.m.IncMiss()
			results = append(results, terrapipe.DataGroup{})
			continue
		}
		d.m.IncHit()
		results = append(results, terrapipe.DataGroup{v})
	}
	return terrapipe.NewResponse(terrapipe.CodeOkay, results...)
}

func (d *Dispatcher) set(args terrapipe.DataGroup) *terrapipe.Frame {
	if len(args) != 2 || !validKey(args[0]) {
		return d.actionError()
	}
	d.m.IncOp("SET")
	if err := d.ks.Set(string(args[0]), args[1]); err != nil {
		return terrapipe.NewResponse(terrapipe.CodeOverwrite)
	}
	return terrapipe.NewResponse(terrapipe.CodeOkay)
}

func (d *Dispatcher) mset(args terrapipe.DataGroup) *terrapipe.Frame {
	if !isPairArity(args) {
		return d.actionError()
	}
	d.m.IncOp("MSET")

	count := 0
	for i := 0; i < len(args); i += 2 {
		if err := d.ks.Set(string(args[i]), args[i+1]); err == nil {
			count++
		}
	}
	return terrapipe.NewResponse(terrapipe.CodeOkay, terrapipe.DataGroup{countBytes(count)})
}

func (d *Dispatcher) update(args terrapipe.DataGroup) *terrapipe.Frame {
	if len(args) != 2 || !validKey(args[0]) {
		return d.actionError()
	}
	d.m.IncOp("UPDATE")
	if err := d.ks.Update(string(args[0]), args[1]); err != nil {
		return terrapipe.NewResponse(terrapipe.CodeNil)
	}
	return terrapipe.NewResponse(terrapipe.CodeOkay)
}

func (d *Dispatcher) mupdate(args terrapipe.DataGroup) *terrapipe.Frame {
	if !isPairArity(args) {
		return d.actionError()
	}
	d.m.IncOp("MUPDATE")

	count := 0
	for i := 0; i < len(args); i += 2 {
		if err := d.ks.Update(string(args[i]), args[i+1]); err == nil {
			count++
		}
	}
	return terrapipe.NewResponse(terrapipe.CodeOkay, terrapipe.DataGroup{countBytes(count)})
}

func (d *Dispatcher) exists(args terrapipe.DataGroup) *terrapipe.Frame {
	if len(args) < 1 || !allValidKeys(args) {
		return d.actionError()
	}
	d.m.IncOp("EXISTS")

	count := 0
	for _, k := range args {
		if d.ks.Exists(string(k)) {
			count++
		}
	}
	return terrapipe.NewResponse(terrapipe.CodeOkay, terrapipe.DataGroup{countBytes(count)})
}

func (d *Dispatcher) del(args terrapipe.DataGroup) *terrapipe.Frame {
	if len(args) < 1 || !allValidKeys(args) {
		return d.actionError()
	}
	d.m.IncOp("DEL")

	count := 0
	for _, k := range args {
		if err := d.ks.Del(string(k)); err == nil {
			count++
		}
	}
	return terrapipe.NewResponse(terrapipe.CodeOkay, terrapipe.DataGroup{countBytes(count)})
}

// validKey rejects the zero-length key, an ActionError boundary case.
func validKey(k []byte) bool {
	return len(k) >= 1
}

func allValidKeys(args terrapipe.DataGroup) bool {
	for _, k := range args {
		if !validKey(k) {
			return false
		}
	}
	return true
}

// isPairArity checks the "even >= 2, (k,v) pairs" arity MSET/MUPDATE share,
// including that every key in the pairs is non-empty.
func isPairArity(args terrapipe.DataGroup) bool {
	if len(args) < 2 || len(args)%2 != 0 {
		return false
	}
	for i := 0; i < len(args); i += 2 {
		if !validKey(args[i]) {
			return false
		}
	}
	return true
}

func countBytes(n int) []byte {
	return []byte(strconv.Itoa(n))
}
