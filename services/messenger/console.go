package messengersvc

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/peerbot/peerbot/core"
)

var (
	SentMessages = make([]core.Message, 0)
	mu           sync.Mutex
)

// consoleMessenger prints outbound messages to a writer; used in DEV and
// tests. In test mode every message is also recorded in SentMessages.
type consoleMessenger struct {
	out      io.Writer
	testMode bool
}

var _ core.Messenger = (*consoleMessenger)(nil)

func NewConsoleMessenger(conf *core.Config) core.Messenger {
	return &consoleMessenger{out: os.Stdout, testMode: conf.TestMode}
}

func NewConsoleMessengerWriter(w io.Writer, testMode bool) core.Messenger {
	return &consoleMessenger{out: w, testMode: testMode}
}

func (svc consoleMessenger) SendMessages(messages ...*core.Message) {
	for _, msg := range messages {
		if msg == nil {
			continue
		}
		_, _ = fmt.Fprintf(svc.out, "%d : %s\n", msg.ChatID, msg.Text)
		if svc.testMode {
			mu.Lock()
			SentMessages = append(SentMessages, *msg)
			mu.Unlock()
		}
	}
}

// ClearSentMessages resets the test recorder.
func ClearSentMessages() {
	mu.Lock()
	SentMessages = SentMessages[:0]
	mu.Unlock()
}
