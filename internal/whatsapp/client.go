package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"whatsapp-messenger/internal/broadcast"
	"whatsapp-messenger/internal/config"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
	"github.com/mdp/qrterminal"
	"github.com/sirupsen/logrus"
	"github.com/skip2/go-qrcode"
)

const (
	webURL       = "https://web.whatsapp.com"
	probeTimeout = 2 * time.Second
	openTimeout  = 60 * time.Second
	pollInterval = 500 * time.Millisecond
	settleDelay  = 2 * time.Second

	notSendable = "Could not find send button or contact"
)

var (
	ErrDisabled  = errors.New("WhatsApp automation is disabled")
	ErrNoSession = errors.New("WhatsApp browser session is not open")
	ErrNoQRCode  = errors.New("no QR code available")
)

// Status is the login state of the browser session.
type Status struct {
	Authenticated bool   `json:"authenticated"`
	QRAvailable   bool   `json:"qr_available"`
	Message       string `json:"message"`
}

// Client drives a WhatsApp Web session in Chrome. All browser work goes
// through mu, so only one page navigation happens at a time.
type Client struct {
	Config    *config.Config
	Selectors Selectors

	mu          sync.Mutex
	browserCtx  context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	lastQR      string

	ready atomic.Bool
}

func NewClient(cfg *config.Config, selectors Selectors) *Client {
	return &Client{Config: cfg, Selectors: selectors}
}

var _ broadcast.Gateway = (*Client)(nil)

// Open starts Chrome with the persistent profile and loads WhatsApp Web.
// Calling Open on an open session does nothing.
func (c *Client) Open(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.openLocked(ctx)
}

func (c *Client) openLocked(ctx context.Context) error {
	if !c.Config.WhatsAppEnabled {
		return ErrDisabled
	}
	if c.browserCtx != nil && c.browserCtx.Err() == nil {
		return nil
	}

	if c.Config.UserDataDir != "" {
		if err := os.MkdirAll(c.Config.UserDataDir, 0o755); err != nil {
			return fmt.Errorf("failed to create user data directory: %w", err)
		}
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", c.Config.Headless),
		chromedp.UserDataDir(c.Config.UserDataDir),
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(1920, 1080),
	)
	if c.Config.ChromePath != "" {
		opts = append(opts, chromedp.ExecPath(c.Config.ChromePath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, cancel := chromedp.NewContext(allocCtx)

	// The first Run starts the browser and must use the browser context itself.
	if err := chromedp.Run(browserCtx); err != nil {
		cancel()
		allocCancel()
		return fmt.Errorf("failed to start Chrome: %w", err)
	}
	c.browserCtx, c.cancel, c.allocCancel = browserCtx, cancel, allocCancel

	logrus.WithField("headless", c.Config.Headless).Info("Opening WhatsApp Web")
	if err := c.run(ctx, openTimeout, chromedp.Navigate(webURL)); err != nil {
		c.closeLocked()
		return fmt.Errorf("failed to navigate to WhatsApp Web: %w", err)
	}
	return nil
}

// IsReady reports whether the session is logged in and showing the chat list.
// It never waits for the page.
func (c *Client) IsReady(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.probeReadyLocked(ctx)
}

func (c *Client) probeReadyLocked(ctx context.Context) bool {
	if !c.sessionOpen() {
		c.ready.Store(false)
		return false
	}
	node, err := c.findFirst(ctx, c.Selectors.ChatList)
	ok := err == nil && node != nil
	c.ready.Store(ok)
	return ok
}

// QRCode returns the pending login code, or "" when none is shown. A code
// seen for the first time is printed to the terminal when PrintQR is set.
func (c *Client) QRCode(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.qrCodeLocked(ctx)
}

func (c *Client) qrCodeLocked(ctx context.Context) (string, error) {
	if !c.sessionOpen() {
		return "", nil
	}
	// A selector can match an element without the code, so keep looking.
	for _, sel := range c.Selectors.QRCode {
		node, err := c.findFirst(ctx, []string{sel})
		if err != nil {
			return "", err
		}
		code := loginCode(node)
		if code == "" {
			continue
		}
		if code != c.lastQR {
			c.lastQR = code
			logrus.Info("New WhatsApp login QR code available")
			if c.Config.PrintQR {
				qrterminal.GenerateHalfBlock(code, qrterminal.L, os.Stdout)
			}
		}
		return code, nil
	}
	return "", nil
}

// chatOpenTimeout bounds navigation plus the page load wait that follows it.
func chatOpenTimeout(pageLoad time.Duration) time.Duration {
	return pageLoad + openTimeout
}

func loginCode(node *cdp.Node) string {
	if node == nil {
		return ""
	}
	return node.AttributeValue("data-ref")
}

// QRImage renders the pending login code as a PNG.
func (c *Client) QRImage(ctx context.Context) ([]byte, error) {
	code, err := c.QRCode(ctx)
	if err != nil {
		return nil, err
	}
	if code == "" {
		return nil, ErrNoQRCode
	}
	return qrcode.Encode(code, qrcode.Medium, 256)
}

// Status opens the session if needed and reports its login state. While a
// send holds the session the last known state is returned.
func (c *Client) Status(ctx context.Context) Status {
	if !c.Config.WhatsAppEnabled {
		return Status{Message: "WhatsApp automation disabled"}
	}
	if !c.mu.TryLock() {
		return Status{Authenticated: c.ready.Load(), Message: "Busy sending messages"}
	}
	defer c.mu.Unlock()

	if err := c.openLocked(ctx); err != nil {
		logrus.WithError(err).Warn("WhatsApp session unavailable")
		return Status{Message: "Initializing..."}
	}
	if c.probeReadyLocked(ctx) {
		return Status{Authenticated: true, Message: "Authenticated"}
	}
	if code, _ := c.qrCodeLocked(ctx); code != "" {
		return Status{QRAvailable: true, Message: "QR code available"}
	}
	return Status{Message: "Initializing..."}
}

// Send opens the chat for phone with text prefilled and clicks send. Numbers
// WhatsApp rejects, and pages without a send button, are delivery failures;
// browser errors are returned as errors.
func (c *Client) Send(ctx context.Context, phone, text string) (broadcast.SendResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.sessionOpen() {
		return broadcast.SendResult{}, ErrNoSession
	}

	log := logrus.WithField("phone", phone)
	log.Debug("Opening chat")

	// Clear any beforeunload handler so navigation never stalls on a dialog.
	_ = c.run(ctx, probeTimeout, chromedp.Evaluate(`window.onbeforeunload = null;`, nil))

	err := c.run(ctx, chatOpenTimeout(c.Config.PageLoadTimeout),
		chromedp.Navigate(ChatURL(phone, text)),
		chromedp.Sleep(c.Config.PageLoadTimeout),
	)
	if err != nil {
		return broadcast.SendResult{}, fmt.Errorf("failed to open chat: %w", err)
	}

	deadline := time.Now().Add(c.Config.SendButtonTimeout)
	for {
		button, err := c.findFirst(ctx, c.Selectors.SendButton)
		if err != nil {
			return broadcast.SendResult{}, err
		}
		if button != nil {
			if err := c.run(ctx, probeTimeout, chromedp.MouseClickNode(button)); err != nil {
				return broadcast.SendResult{}, fmt.Errorf("failed to click send: %w", err)
			}
			if err := c.run(ctx, settleDelay+time.Second, chromedp.Sleep(settleDelay)); err != nil {
				return broadcast.SendResult{}, err
			}
			log.Info("Message sent")
			return broadcast.SendResult{Success: true}, nil
		}

		invalid, err := c.findFirst(ctx, c.Selectors.InvalidPhone)
		if err != nil {
			return broadcast.SendResult{}, err
		}
		if invalid != nil {
			return broadcast.SendResult{Error: "Phone number is not on WhatsApp"}, nil
		}

		if time.Now().After(deadline) {
			return broadcast.SendResult{Error: notSendable}, nil
		}
		select {
		case <-ctx.Done():
			return broadcast.SendResult{}, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// Close shuts down the browser. The session can be opened again later.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

func (c *Client) closeLocked() {
	if c.cancel != nil {
		logrus.Info("Closing browser...")
		c.cancel()
	}
	if c.allocCancel != nil {
		c.allocCancel()
	}
	c.browserCtx, c.cancel, c.allocCancel = nil, nil, nil
	c.lastQR = ""
	c.ready.Store(false)
}

func (c *Client) sessionOpen() bool {
	return c.browserCtx != nil && c.browserCtx.Err() == nil
}

// run executes actions on the browser tab, bounded by timeout and by the
// caller's ctx. Cancelling either stops the actions but keeps the tab.
func (c *Client) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(c.browserCtx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

// findFirst returns the first node matched by any selector, or nil.
func (c *Client) findFirst(ctx context.Context, selectors []string) (*cdp.Node, error) {
	for _, sel := range selectors {
		var nodes []*cdp.Node
		if err := c.run(ctx, probeTimeout, chromedp.Nodes(sel, &nodes, chromedp.BySearch, chromedp.AtLeast(0))); err != nil {
			return nil, err
		}
		if len(nodes) > 0 {
			return nodes[0], nil
		}
	}
	return nil, nil
}

// ChatURL builds the deep link that opens a chat with text prefilled. Only the
// digits of phone are used.
func ChatURL(phone, text string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, phone)
	return fmt.Sprintf("%s/send?phone=%s&text=%s", webURL, digits, strings.ReplaceAll(url.QueryEscape(text), "+", "%20"))
}
