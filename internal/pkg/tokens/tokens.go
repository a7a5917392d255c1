package tokens

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

// encoding used for prompt budgeting, compatible with current chat models
const encodingName = "cl100k_base"

func init() {
	tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
}

// Counter counts tokens of prompt parts
type Counter interface {
	Count(text string) int
}

// TiktokenCounter counts tokens with a BPE encoding
type TiktokenCounter struct {
	encoding *tiktoken.Tiktoken
	mu       sync.Mutex
}

var (
	instance *TiktokenCounter
	once     sync.Once
	initErr  error
)

// Default returns the shared counter, the encoding is loaded once
func Default() (*TiktokenCounter, error) {
	once.Do(func() {
		enc, err := tiktoken.GetEncoding(encodingName)
		if err != nil {
			initErr = err
			return
		}
		instance = &TiktokenCounter{encoding: enc}
	})

	if initErr != nil {
		return nil, initErr
	}
	return instance, nil
}

func (c *TiktokenCounter) Count(text string) int {
	if text == "" {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.encoding.Encode(text, nil, nil))
}

// Estimate is the fallback used when no BPE encoding is available
type Estimate struct{}

func (Estimate) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(text)/4 + 1
}

// DefaultOrEstimate never fails, it degrades to a length estimate
func DefaultOrEstimate() Counter {
	if c, err := Default(); err == nil {
		return c
	}
	return Estimate{}
}
