// Package console is the interactive diagnostic console: a line-oriented TCP service
// for examining the engine's in-memory structures. Commands run synchronously against
// the live store and zone view. Each read goes through the store's or the view's own
// accessor, which holds that structure's mutex for that one read only; a command which
// reads both (a2z, address) does not see them as one atomic snapshot.
package console

import (
	"bufio"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/m3047/rear-view-rpz/database"
	"github.com/m3047/rear-view-rpz/dnsutil"
	"github.com/m3047/rear-view-rpz/log"
	"github.com/m3047/rear-view-rpz/rpz"
	"github.com/m3047/rear-view-rpz/telemetry"
)

// Each response line is prefixed by one of these codes and an ASCII space.
const (
	codeOK       = 200 // Success, single line output
	codeBegin    = 210 // Success, beginning of multi-line output
	codeContinue = 212 // Success, continuation line
	codeBad      = 400 // User error / bad request
	codeMissing  = 500 // Not found or internal error
)

// Context is everything a console session can see.
type Context struct {
	Store   *database.Store
	View    *rpz.ZoneView
	Batcher *rpz.Batcher
	Funnel  *telemetry.Funnel
}

// commands maps each verb to its expected token count, including the verb.
var commands = map[string]int{
	"a2z":       1,
	"address":   2,
	"entry":     2,
	"qd":        1,
	"cache":     3,
	"evictions": 2,
	"refresh":   2,
	"quit":      1,
}

// Server accepts console connections. One session per connection, commands processed
// serially.
type Server struct {
	Address string

	ctx      *Context
	listener net.Listener
	wg       sync.WaitGroup
}

func NewServer(address string, ctx *Context) *Server {
	return &Server{Address: address, ctx: ctx}
}

func (t *Server) Start() error {
	var err error
	t.listener, err = net.Listen(dnsutil.TCPNetwork, t.Address)
	if err != nil {
		return fmt.Errorf("console listen on %s failed: %w", t.Address, err)
	}

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		for {
			conn, err := t.listener.Accept()
			if err != nil {
				return // Stop() closed the listener
			}
			t.wg.Add(1)
			go t.handleConn(conn)
		}
	}()

	return nil
}

func (t *Server) Stop() {
	if t.listener != nil {
		t.listener.Close()
	}
	t.wg.Wait()
}

func (t *Server) handleConn(conn net.Conn) {
	defer t.wg.Done()
	defer conn.Close()

	log.Minor("console session from ", conn.RemoteAddr())

	scanner := bufio.NewScanner(conn)
	for {
		fmt.Fprint(conn, "# ")
		if !scanner.Scan() {
			return
		}
		response, quit := Dispatch(t.ctx, scanner.Text())
		if quit {
			return
		}
		if len(response) > 0 {
			fmt.Fprint(conn, response)
		}
	}
}

// Dispatch parses and executes one command line, returning the full response text and
// whether the session should end. Exported so tests need not stand up a listener.
func Dispatch(ctx *Context, line string) (response string, quit bool) {
	tokens := strings.Fields(line)
	if len(tokens) == 0 {
		return "", false
	}

	verb := expandVerb(strings.ToLower(tokens[0]))
	argc, ok := commands[verb]
	if !ok {
		return formatResponse(codeBad, []string{"unrecognized command"}), false
	}
	if len(tokens) != argc {
		return formatResponse(codeBad, []string{"improperly formed request"}), false
	}

	var code int
	var lines []string
	switch verb {
	case "a2z":
		code, lines = a2z(ctx)
	case "address":
		code, lines = addressDetails(ctx, tokens[1])
	case "entry":
		code, lines = zoneEntry(ctx, tokens[1])
	case "qd":
		code, lines = queueDepths(ctx)
	case "cache":
		code, lines = cacheSlice(ctx, tokens[1], tokens[2])
	case "evictions":
		code, lines = recentEvictions(ctx, tokens[1])
	case "refresh":
		code, lines = recentRefreshes(ctx, tokens[1])
	case "quit":
		return "", true
	}

	return formatResponse(code, lines), false
}

// expandVerb allows verbs longer than four characters to be abbreviated to any prefix
// of at least four, so "addr" and "evict" work.
func expandVerb(verb string) string {
	if len(verb) < 4 {
		return verb
	}
	for candidate := range commands {
		if len(candidate) > 4 && strings.HasPrefix(candidate, verb) {
			return candidate
		}
	}

	return verb
}

func formatResponse(code int, lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	if len(lines) == 1 && code != codeBegin {
		return fmt.Sprintf("%d %s\n", code, lines[0])
	}

	var sb strings.Builder
	for ix, text := range lines {
		lineCode := codeBegin
		if ix > 0 {
			lineCode = codeContinue
		}
		if code == codeBad || code == codeMissing {
			lineCode = code
		}
		fmt.Fprintf(&sb, "%d %s\n", lineCode, text)
	}

	return sb.String()
}

// a2z crosschecks the addresses in the telemetry view against the zone view. "<" marks
// an address only in telemetry, ">" a reverse name only in the zone.
func a2z(ctx *Context) (int, []string) {
	addresses := ctx.Store.Addresses()
	pairs := ctx.View.Pairs()

	lines := make([]string, 0)
	ax, zx := 0, 0
	for ax < len(addresses) || zx < len(pairs) {
		switch {
		case zx >= len(pairs) || (ax < len(addresses) && addresses[ax] < pairs[zx].Address):
			lines = append(lines, "< "+addresses[ax])
			ax++
		case ax >= len(addresses) || addresses[ax] > pairs[zx].Address:
			lines = append(lines, "> "+pairs[zx].Name)
			zx++
		default:
			ax++
			zx++
		}
	}

	if len(lines) == 0 {
		return codeOK, []string{"views agree"}
	}

	return codeBegin, lines
}

func addressDetails(ctx *Context, address string) (int, []string) {
	canonical, err := dnsutil.CanonicalAddr(address)
	if err != nil {
		return codeBad, []string{"unparseable address"}
	}

	now := time.Now()
	details, ok := ctx.Store.Details(canonical, now)
	if !ok {
		return codeMissing, []string{"not found"}
	}

	lines := make([]string, 0, len(details)*2+1)
	for _, d := range details {
		marker := "   "
		if d.Best {
			marker = "***"
		}
		chain := strings.Join(d.Chain, " ")
		if d.Reloaded {
			chain = "(reloaded) " + database.TerminalName(d.Chain)
		}
		lines = append(lines, fmt.Sprintf("%s %s", marker, chain))
		lines = append(lines, fmt.Sprintf(
			"        fs:%0.1f ls:%0.1f qc:%d qt:%0.1f h:%0.1f",
			d.FirstSeen.Sub(now).Seconds(), d.LastSeen.Sub(now).Seconds(),
			d.QueryCount, d.Trend, d.Score))
	}

	if entry, ok := ctx.View.Entry(canonical); ok {
		lines = append(lines, "-> "+entry.Ptr)
	} else {
		lines = append(lines, "-> MISSING FROM ZONE CONTENTS")
	}

	return codeBegin, lines
}

func zoneEntry(ctx *Context, address string) (int, []string) {
	canonical, err := dnsutil.CanonicalAddr(address)
	if err != nil {
		return codeBad, []string{"unparseable address"}
	}

	entry, ok := ctx.View.Entry(canonical)
	if !ok {
		return codeMissing, []string{"not found"}
	}

	return codeOK, []string{fmt.Sprintf("%s -> %s (updated %s score %0.2f)",
		entry.Name, entry.Ptr,
		entry.Meta.Update.Format(time.RFC3339), entry.Meta.Score)}
}

func queueDepths(ctx *Context) (int, []string) {
	lines := make([]string, 0, 4)

	if ctx.Funnel != nil {
		taken, dropped, invalid := ctx.Funnel.Counters()
		lines = append(lines, fmt.Sprintf("telemetry: %d (taken: %d dropped: %d invalid: %d)",
			ctx.Funnel.Depth(), taken, dropped, invalid))
	}

	addresses, resolutions := ctx.Store.Counts()
	lines = append(lines, fmt.Sprintf("associations: %d resolutions: %d", addresses, resolutions))

	if ctx.Batcher != nil {
		depth, writing := ctx.Batcher.Depth()
		lines = append(lines, fmt.Sprintf("batch: %d (writing: %t)", depth, writing))
	}

	return codeBegin, lines
}

func cacheSlice(ctx *Context, end, count string) (int, []string) {
	if end != "<" && end != ">" {
		return codeBad, []string{`expected "<" or ">"`}
	}
	n, err := strconv.Atoi(count)
	if err != nil || n < 1 {
		return codeBad, []string{"expected a positive integer value"}
	}

	_, resolutions := ctx.Store.Counts()
	lines := []string{fmt.Sprintf("Resolutions in cache: %d", resolutions)}
	for _, entry := range ctx.Store.QueueSlice(end == "<", n) {
		lines = append(lines, fmt.Sprintf("%s (%d)", entry.Address, entry.Resolutions))
	}

	return codeBegin, lines
}

func recentEvictions(ctx *Context, count string) (int, []string) {
	n, err := strconv.Atoi(count)
	if err != nil || n < 1 {
		return codeBad, []string{"expected a positive integer value"}
	}

	now := time.Now()
	events := ctx.Store.RecentEvictions(n)
	if len(events) == 0 {
		return codeOK, []string{"no evictions"}
	}

	lines := make([]string, 0)
	for _, e := range events {
		lines = append(lines, fmt.Sprintf("** %0.3f **", e.When.Sub(now).Seconds()))
		lines = append(lines, "Resolutions:")
		lines = append(lines, fmt.Sprintf(
			"     Overage:%6d      Target:%6d      Working:%6d      N After:%6d",
			e.Overage, e.TargetPool, e.WorkingPool, e.Remaining))
		lines = append(lines, "Addresses:")
		lines = append(lines, fmt.Sprintf(
			"    Selected:%6d    Recycled:%6d      Affected:%6d     Deleted:%6d",
			e.Selected, e.Recycled, e.Affected, e.Deleted))
		lines = append(lines, "Affected:")
		for _, address := range e.AffectedAddresses {
			lines = append(lines, "    "+address)
		}
		lines = append(lines, "Deleted:")
		for _, address := range e.DeletedAddresses {
			lines = append(lines, "    "+address)
		}
		lines = append(lines, "Recycled:")
		for _, address := range e.RecycledAddresses {
			lines = append(lines, "    "+address)
		}
		lines = append(lines, "Removed:")
		for _, r := range e.Removed {
			lines = append(lines, fmt.Sprintf("    %8.1f   %s", r.Score, r.Address))
			lines = append(lines, "          "+r.Terminal)
		}
	}

	return codeBegin, lines
}

func recentRefreshes(ctx *Context, count string) (int, []string) {
	n, err := strconv.Atoi(count)
	if err != nil || n < 1 {
		return codeBad, []string{"expected a positive integer value"}
	}
	if ctx.Batcher == nil {
		return codeMissing, []string{"no batcher"}
	}

	now := time.Now()
	batches := ctx.Batcher.RecentRefreshes(n)
	if len(batches) == 0 {
		return codeOK, []string{"no refreshes"}
	}

	lines := make([]string, 0)
	for _, b := range batches {
		lines = append(lines, fmt.Sprintf("** %0.3f %s **",
			b.Created.Sub(now).Seconds(), strings.ToUpper(b.State.String())))
		lines = append(lines, fmt.Sprintf("Add Calls:%4d    Batch Size:%4d",
			b.AddCalls, len(b.Addresses)))
		if b.State >= rpz.BatchWriting {
			lines = append(lines, fmt.Sprintf(
				"Elapsed   Accumulating:%0.3f  Processing:%0.3f",
				b.Accumulating.Seconds(), b.Processing.Seconds()))
		}
		if b.State == rpz.BatchComplete {
			if len(b.Err) > 0 {
				lines = append(lines, "Error: "+b.Err)
			} else {
				lines = append(lines, fmt.Sprintf(
					"RCode:%3d      Wire Size Request:%5d   Response:%4d",
					b.Rcode, b.WireRequestBytes, b.WireResponseBytes))
			}
		}
	}

	return codeBegin, lines
}
