//go:build ruleguard

// Package gorules defines custom linter rules for okn-go.
package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

// SessionWallClock flags direct wall-clock use in the session machine.
// Trial timing goes through the injected Clock so tests can drive it.
//
//	time.Now()            -> m.clock.Now()
//	time.NewTicker(d)     -> m.clock.NewTicker(d)
func SessionWallClock(m dsl.Matcher) {
	m.Match(`time.Now()`, `time.NewTicker($d)`, `time.NewTimer($d)`, `time.Sleep($d)`, `time.After($d)`).
		Where(m.File().PkgPath.Matches(`/internal/session$`) && !m.File().Name.Matches(`^clock\.go$`)).
		Report("use the session Clock instead of the time package")
}

// NoStdLog flags the standard library logger outside main. Use the module
// logger from internal/logger.
func NoStdLog(m dsl.Matcher) {
	m.Import("log")
	m.Match(`log.Printf($*_)`, `log.Println($*_)`, `log.Print($*_)`, `log.Fatalf($*_)`, `log.Fatal($*_)`).
		Where(m.File().Imports("log") && m.File().PkgPath.Matches(`/internal/`)).
		Report("use the module logger from internal/logger instead of the standard log package")
}

// NoPrintInInternal flags fmt printing to stdout from internal packages.
func NoPrintInInternal(m dsl.Matcher) {
	m.Match(`fmt.Println($*_)`, `fmt.Printf($*_)`, `fmt.Print($*_)`).
		Where(m.File().PkgPath.Matches(`/internal/`) && !m.File().Name.Matches(`_test\.go$`)).
		Report("internal packages log through internal/logger; only cmd writes to stdout")
}

// WaitGroupGo detects the manual Add/Done pattern and suggests wg.Go.
//
//	wg.Add(1)
//	go func() {
//	    defer wg.Done()
//	    work()
//	}()
//
// becomes wg.Go(work).
func WaitGroupGo(m dsl.Matcher) {
	m.Match(
		`$wg.Add(1); go func() { defer $wg.Done(); $*body }()`,
	).
		Where(m["wg"].Type.Is("*sync.WaitGroup") || m["wg"].Type.Is("sync.WaitGroup")).
		Report("use $wg.Go(func() { $body }) instead of manual Add/Done pattern").
		Suggest("$wg.Go(func() { $body })")
}

// EchoErrorResponse flags ad-hoc error maps in API handlers. Errors are
// written as ErrorResponse through HandleError.
func EchoErrorResponse(m dsl.Matcher) {
	m.Match(`$c.JSON($status, map[string]string{"error": $msg})`).
		Where(m["c"].Type.Is("echo.Context") && m.File().PkgPath.Matches(`/internal/api/v1$`)).
		Report("return ErrorResponse via HandleError instead of an ad-hoc error map")
}
