// cartctl is a CLI for driving a cartsync server.
// Each command performs a single operation, making it composable for scripts.
// The session id from login is kept in a local file and sent as a bearer
// credential by later commands.
//
// Commands:
//
//	cartctl signup -user NAME -password PW
//	cartctl login -user NAME -password PW
//	cartctl items
//	cartctl add -item ID
//	cartctl remove -item ID
//	cartctl cart [-optimistic]
//	cartctl checkout
//	cartctl orders
//	cartctl logout
//	cartctl version
//
// Examples:
//
//	cartctl login -user alice -password secret
//	cartctl add -item 5
//	cartctl cart
//	ORDER=$(cartctl checkout -q)
package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/mod/semver"

	"cartsync/internal/negotiation"
)

// clientVersion is the version sent in the Cartsync-Client header.
const clientVersion = "v1.0.0"

var client = &http.Client{Timeout: 30 * time.Second}

// Global flags (apply to all commands)
var (
	serverURL   string
	sessionFile string
	quiet       bool
	noColor     bool
	verbose     bool
)

// ANSI color codes
var (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
	colorBold   = "\033[1m"
)

func init() {
	if os.Getenv("NO_COLOR") != "" {
		disableColors()
	}
}

func disableColors() {
	colorReset, colorRed, colorGreen, colorYellow = "", "", "", ""
	colorCyan, colorGray, colorBold = "", "", ""
}

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "signup":
		runSignup(args)
	case "login":
		runLogin(args)
	case "logout":
		runLogout(args)
	case "items":
		runItems(args)
	case "add":
		runAdd(args)
	case "remove":
		runRemove(args)
	case "cart":
		runCart(args)
	case "checkout":
		runCheckout(args)
	case "orders":
		runOrders(args)
	case "version":
		runVersion(args)
	case "-h", "-help", "--help", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `cartctl - cartsync command line client

Usage:
  cartctl <command> [options]

Commands:
  signup    Register a user with the backend
  login     Start a session (stored in the session file)
  logout    End the session and wipe its cached cart
  items     List catalog items with prices
  add       Add one unit of an item to the cart
  remove    Remove an item's line from the cart
  cart      Show the cart (-optimistic for the local view)
  checkout  Place an order for the cart
  orders    List past orders
  version   Check server compatibility

Environment:
  CARTSYNC_URL           server URL (default http://localhost:8080)
  CARTCTL_SESSION_FILE   session file (default ~/.cartctl-session)

Run 'cartctl <command> -h' for command-specific options.
`)
}

// newFlagSet returns a flag set with the global flags registered.
func newFlagSet(name, usage string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.StringVar(&serverURL, "server", envOr("CARTSYNC_URL", "http://localhost:8080"), "cartsync server base URL")
	fs.StringVar(&sessionFile, "session-file", defaultSessionFile(), "File holding the session id")
	fs.BoolVar(&quiet, "q", false, "Quiet mode - only output ids")
	fs.BoolVar(&noColor, "no-color", false, "Disable colored output")
	fs.BoolVar(&verbose, "v", false, "Verbose - show full request/response")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: cartctl %s\n\nOptions:\n", usage)
		fs.PrintDefaults()
	}
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string) {
	fs.Parse(args)
	if noColor {
		disableColors()
	}
}

// =============================================================================
// ACCOUNT COMMANDS
// =============================================================================

func runSignup(args []string) {
	fs := newFlagSet("signup", "signup -user NAME -password PW [options]")
	var user, password string
	fs.StringVar(&user, "user", "", "Username (required)")
	fs.StringVar(&password, "password", "", "Password (required)")
	parseFlags(fs, args)

	if user == "" || password == "" {
		fs.Usage()
		os.Exit(1)
	}

	if _, err := doRequest("POST", "/users", map[string]string{"username": user, "password": password}, false); err != nil {
		fatal("Signup failed: %v", err)
	}
	printSuccess("User %s created", user)
}

func runLogin(args []string) {
	fs := newFlagSet("login", "login -user NAME -password PW [options]")
	var user, password string
	fs.StringVar(&user, "user", "", "Username (required)")
	fs.StringVar(&password, "password", "", "Password (required)")
	parseFlags(fs, args)

	if user == "" || password == "" {
		fs.Usage()
		os.Exit(1)
	}

	// An existing session is sent so the server ends it.
	resp, err := doRequest("POST", "/sessions", map[string]string{"username": user, "password": password}, true)
	if err != nil {
		fatal("Login failed: %v", err)
	}

	id, _ := resp.body["session_id"].(string)
	if err := saveSession(sessionFile, id); err != nil {
		fatal("Saving session: %v", err)
	}

	if quiet {
		fmt.Println(id)
		return
	}
	printSuccess("Logged in as %s", user)
	printInfo("Session stored in %s", sessionFile)
}

func runLogout(args []string) {
	fs := newFlagSet("logout", "logout [options]")
	parseFlags(fs, args)

	_, err := doRequest("DELETE", "/sessions", nil, true)
	// The local file goes either way; a rejected session is already gone.
	if rmErr := os.Remove(sessionFile); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
		printWarning("Removing session file: %v", rmErr)
	}
	if err != nil {
		fatal("Logout failed: %v", err)
	}
	printSuccess("Logged out")
}

func runVersion(args []string) {
	fs := newFlagSet("version", "version [options]")
	parseFlags(fs, args)

	resp, err := doRequest("GET", "/health", nil, false)
	if err != nil {
		fatal("Health check failed: %v", err)
	}
	server, _ := resp.body["version"].(string)

	if quiet {
		fmt.Println(server)
	} else {
		fmt.Printf("  Client: %s%s%s\n", colorCyan, clientVersion, colorReset)
		fmt.Printf("  Server: %s%s%s\n", colorCyan, server, colorReset)
	}
	if err := checkCompatible(clientVersion, server); err != nil {
		fatal("%v", err)
	}
	printSuccess("Compatible")
}

// checkCompatible mirrors the server's rule: same major, client not newer.
func checkCompatible(client, server string) error {
	server = negotiation.NormalizeVersion(server)
	if !semver.IsValid(server) {
		return fmt.Errorf("server reported invalid version %q", server)
	}
	if semver.Major(client) != semver.Major(server) {
		return fmt.Errorf("client %s is incompatible with server %s (major version differs)", client, server)
	}
	if semver.Compare(client, server) > 0 {
		return fmt.Errorf("client %s is newer than server %s", client, server)
	}
	return nil
}

// =============================================================================
// CART COMMANDS
// =============================================================================

func runItems(args []string) {
	fs := newFlagSet("items", "items [options]")
	parseFlags(fs, args)

	resp, err := doRequest("GET", "/items", nil, true)
	if err != nil {
		fatal("Listing items failed: %v", err)
	}

	items, _ := resp.body["items"].([]interface{})
	for _, it := range items {
		item, ok := it.(map[string]interface{})
		if !ok {
			continue
		}
		if quiet {
			fmt.Println(formatID(item["id"]))
			continue
		}
		status, _ := item["status"].(string)
		statusColor := colorGreen
		if status != "available" {
			statusColor = colorGray
		}
		fmt.Printf("  %s%4s%s  %-12v %10v  %s%s%s\n",
			colorBold, formatID(item["id"]), colorReset,
			item["name"], item["price_display"],
			statusColor, status, colorReset)
	}
}

func runAdd(args []string) {
	fs := newFlagSet("add", "add -item ID [options]")
	var itemID uint
	fs.UintVar(&itemID, "item", 0, "Item ID (required)")
	parseFlags(fs, args)

	if itemID == 0 {
		fs.Usage()
		os.Exit(1)
	}

	resp, err := doRequest("POST", "/cart/items", map[string]uint{"item_id": itemID}, true)
	if err != nil {
		fatal("Add failed: %v", err)
	}
	printSuccess("Item %d added", itemID)
	printCart(resp.body)
}

func runRemove(args []string) {
	fs := newFlagSet("remove", "remove -item ID [options]")
	var itemID uint
	fs.UintVar(&itemID, "item", 0, "Item ID (required)")
	parseFlags(fs, args)

	if itemID == 0 {
		fs.Usage()
		os.Exit(1)
	}

	resp, err := doRequest("DELETE", "/cart/items/"+strconv.FormatUint(uint64(itemID), 10), nil, true)
	if err != nil {
		fatal("Remove failed: %v", err)
	}
	printSuccess("Item %d removed", itemID)
	printCart(resp.body)
}

func runCart(args []string) {
	fs := newFlagSet("cart", "cart [-optimistic] [options]")
	var optimistic bool
	fs.BoolVar(&optimistic, "optimistic", false, "Show the local optimistic view without asking the backend")
	parseFlags(fs, args)

	path := "/cart"
	if optimistic {
		path = "/cart/optimistic"
	}
	resp, err := doRequest("GET", path, nil, true)
	if err != nil {
		fatal("Viewing cart failed: %v", err)
	}

	if cs, found, err := negotiation.ParseCacheStatus(resp.header.Get(negotiation.CacheStatusHeader)); err == nil && found && cs.Hit && !optimistic {
		printWarning("Backend unreachable, showing last known cart (%s)", cs.Detail)
	}
	printCart(resp.body)
}

func runCheckout(args []string) {
	fs := newFlagSet("checkout", "checkout [options]")
	parseFlags(fs, args)

	resp, err := doRequest("POST", "/checkout", nil, true)
	if err != nil {
		fatal("Checkout failed: %v", err)
	}

	id := formatID(resp.body["id"])
	if quiet {
		fmt.Println(id)
		return
	}
	printSuccess("Order placed")
	fmt.Printf("  Order: %s%s%s\n", colorCyan, id, colorReset)
	fmt.Printf("  Total: %s%v%s\n", colorGreen, resp.body["total_display"], colorReset)
}

func runOrders(args []string) {
	fs := newFlagSet("orders", "orders [options]")
	parseFlags(fs, args)

	resp, err := doRequest("GET", "/orders", nil, true)
	if err != nil {
		fatal("Listing orders failed: %v", err)
	}

	orders, _ := resp.body["orders"].([]interface{})
	if len(orders) == 0 && !quiet {
		printInfo("No orders yet")
	}
	for _, o := range orders {
		order, ok := o.(map[string]interface{})
		if !ok {
			continue
		}
		if quiet {
			fmt.Println(formatID(order["id"]))
			continue
		}
		lines, _ := order["lines"].([]interface{})
		fmt.Printf("  %s#%s%s  %v  %d lines  %s%v%s\n",
			colorBold, formatID(order["id"]), colorReset,
			order["created_at"], len(lines),
			colorGreen, order["total_display"], colorReset)
	}
}

// =============================================================================
// HTTP HELPERS
// =============================================================================

type response struct {
	header http.Header
	body   map[string]interface{}
}

// doRequest sends a JSON request to the server. With auth set, the stored
// session id is sent as a bearer credential when present.
func doRequest(method, path string, body interface{}, auth bool) (*response, error) {
	var bodyReader io.Reader
	var reqBody []byte
	if body != nil {
		var err error
		reqBody, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
		bodyReader = bytes.NewReader(reqBody)
	}

	req, err := http.NewRequest(method, strings.TrimSuffix(serverURL, "/")+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if header, err := negotiation.FormatClientHeader(negotiation.ClientInfo{Version: clientVersion, Name: "cartctl"}); err == nil {
		req.Header.Set(negotiation.ClientHeader, header)
	}
	if auth {
		if id, err := loadSession(sessionFile); err == nil && id != "" {
			req.Header.Set("Authorization", "Bearer "+id)
		}
	}

	if verbose {
		printRequest(method, path, reqBody)
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	duration := time.Since(start)

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if verbose {
		printResponse(resp.StatusCode, respBody, duration)
	}

	if resp.StatusCode >= 400 {
		return nil, parseErrorBody(resp.StatusCode, respBody)
	}

	out := &response{header: resp.Header, body: map[string]interface{}{}}
	if len(bytes.TrimSpace(respBody)) > 0 {
		if err := json.Unmarshal(respBody, &out.body); err != nil {
			return nil, fmt.Errorf("parsing response: %w", err)
		}
	}
	return out, nil
}

// parseErrorBody renders the server's error envelope.
func parseErrorBody(status int, body []byte) error {
	var env struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &env); err != nil || env.Error.Code == "" {
		return fmt.Errorf("HTTP %d: %s", status, strings.TrimSpace(string(body)))
	}
	return fmt.Errorf("%s: %s", env.Error.Code, env.Error.Message)
}

// =============================================================================
// SESSION FILE
// =============================================================================

func defaultSessionFile() string {
	if p := os.Getenv("CARTCTL_SESSION_FILE"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".cartctl-session"
	}
	return filepath.Join(home, ".cartctl-session")
}

func saveSession(path, id string) error {
	if id == "" {
		return errors.New("server returned no session id")
	}
	return os.WriteFile(path, []byte(id+"\n"), 0o600)
}

func loadSession(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// =============================================================================
// OUTPUT HELPERS
// =============================================================================

func printCart(cart map[string]interface{}) {
	if quiet {
		return
	}
	lines, _ := cart["lines"].([]interface{})
	if len(lines) == 0 {
		printInfo("Cart is empty")
		return
	}
	for _, l := range lines {
		line, ok := l.(map[string]interface{})
		if !ok {
			continue
		}
		marker := ""
		if confirmed, _ := line["confirmed"].(bool); !confirmed {
			marker = colorYellow + " (pending)" + colorReset
		}
		fmt.Printf("  %4s  %-12v x%v%s\n", formatID(line["item_id"]), line["name"], line["quantity"], marker)
	}
	fmt.Printf("  Total: %s%v%s\n", colorGreen, cart["total_display"], colorReset)
}

func printRequest(method, path string, body []byte) {
	fmt.Printf("\n%s▶ REQUEST%s %s%s %s%s\n", colorYellow, colorReset, colorBold, method, path, colorReset)
	if body != nil {
		printJSON(body, "  ")
	}
}

func printResponse(status int, body []byte, duration time.Duration) {
	statusColor := colorGreen
	if status >= 400 {
		statusColor = colorRed
	}
	fmt.Printf("\n%s◀ RESPONSE%s %s%d%s (%v)\n", colorCyan, colorReset, statusColor, status, colorReset, duration)
	printJSON(body, "  ")
}

func printJSON(data []byte, prefix string) {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, data, prefix, "  "); err != nil {
		fmt.Printf("%s%s\n", prefix, string(data))
		return
	}
	fmt.Println(pretty.String())
}

func printSuccess(format string, args ...interface{}) {
	if !quiet {
		fmt.Printf("%s✓ %s%s\n", colorGreen, fmt.Sprintf(format, args...), colorReset)
	}
}

func printWarning(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "%s⚠ %s%s\n", colorYellow, fmt.Sprintf(format, args...), colorReset)
}

func printInfo(format string, args ...interface{}) {
	if !quiet {
		fmt.Printf("%s→ %s%s\n", colorGray, fmt.Sprintf(format, args...), colorReset)
	}
}

// formatID renders a JSON number id without a decimal point.
func formatID(v interface{}) string {
	switch val := v.(type) {
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case string:
		return val
	default:
		return fmt.Sprintf("%v", v)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "%s✗ %s%s\n", colorRed, fmt.Sprintf(format, args...), colorReset)
	os.Exit(1)
}
