package main

import (
	"bufio"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/peerbot/peerbot/bot"
	"github.com/peerbot/peerbot/core"
)

// console lines look like `42 [alice]: /register alice`; the bracketed
// display name is optional.
var consoleLineRegex = regexp.MustCompile(`^(\d+)(?:\s+\[([^\]]*)\])?\s*:\s*(.*)$`)

// runConsole reads caller-tagged command lines from r and dispatches them
// until EOF or an /exit.
func runConsole(d *bot.Dispatcher, r io.Reader, logger core.Logger) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		m := consoleLineRegex.FindStringSubmatch(line)
		if m == nil {
			logger.Warn("unparsable input line: " + line)
			continue
		}
		callerID, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			logger.Warn("bad caller id: " + m[1])
			continue
		}
		if d.Dispatch(callerID, m[2], m[3]) {
			return
		}
	}
	if err := scanner.Err(); err != nil {
		logger.Error("reading console input: " + err.Error())
	}
}
