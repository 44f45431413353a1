package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	cartapp "github.com/SWFTstudios/onlyatthekiosk-website/internal/application/cart"
	"github.com/SWFTstudios/onlyatthekiosk-website/internal/domain/cart"
	"github.com/SWFTstudios/onlyatthekiosk-website/internal/infrastructure/ecommerce"
	"github.com/SWFTstudios/onlyatthekiosk-website/internal/infrastructure/persistence"
	"github.com/SWFTstudios/onlyatthekiosk-website/internal/infrastructure/persistence/models"
)

var (
	cartAPIURL    string
	cartStatePath string
	cartDirect    bool
)

var errStorefrontNotConfigured = errors.New("shopify storefront token is not configured")

// cartCmd groups the cart session commands
var cartCmd = &cobra.Command{
	Use:   "cart",
	Short: "Drive a cart session through the storefront cart proxy",
	Long: `Drive a cart session the way the storefront does. The cart id and lines
are kept in a local sqlite file between invocations. With --direct the
Storefront API is called without going through the proxy.

Available subcommands:
  show    - Print the persisted session without calling the proxy
  add     - Add a variant, creating the remote cart first if needed
  update  - Set the quantity of a line (0 removes it)
  remove  - Remove a line
  refresh - Re-fetch the cart from the proxy
  clear   - Forget the session`,
}

var cartShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the persisted cart session",
	Args:  cobra.NoArgs,
	RunE:  runCartShow,
}

var cartAddCmd = &cobra.Command{
	Use:   "add <variantId> [quantity]",
	Short: "Add a variant to the cart",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runCartAdd,
}

var cartUpdateCmd = &cobra.Command{
	Use:   "update <lineId> <quantity>",
	Short: "Set the quantity of a cart line",
	Args:  cobra.ExactArgs(2),
	RunE:  runCartUpdate,
}

var cartRemoveCmd = &cobra.Command{
	Use:   "remove <lineId>",
	Short: "Remove a cart line",
	Args:  cobra.ExactArgs(1),
	RunE:  runCartRemove,
}

var cartRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Re-fetch the cart from the proxy",
	Args:  cobra.NoArgs,
	RunE:  runCartRefresh,
}

var cartClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Forget the local cart session",
	Args:  cobra.NoArgs,
	RunE:  runCartClear,
}

func init() {
	cartCmd.PersistentFlags().StringVar(&cartAPIURL, "api-url", "", "Base URL serving /api/shopify-cart (default from cart.api_url)")
	cartCmd.PersistentFlags().StringVar(&cartStatePath, "state", "", "Session state file (default from cart.state_path)")
	cartCmd.PersistentFlags().BoolVar(&cartDirect, "direct", false, "Call the Shopify Storefront API directly with shopify.storefront_token")

	cartCmd.AddCommand(cartShowCmd)
	cartCmd.AddCommand(cartAddCmd)
	cartCmd.AddCommand(cartUpdateCmd)
	cartCmd.AddCommand(cartRemoveCmd)
	cartCmd.AddCommand(cartRefreshCmd)
	cartCmd.AddCommand(cartClearCmd)
}

// cartSession is a restored SessionManager and the state file behind it
type cartSession struct {
	manager *cartapp.SessionManager
	db      *persistence.Database
}

func (s *cartSession) Close() error {
	return s.db.Close()
}

// openCartSession restores the persisted session and prints every change
// event to out.
func openCartSession(ctx context.Context, out io.Writer) (*cartSession, error) {
	apiURL, statePath := cartAPIURL, cartStatePath
	if apiURL == "" {
		apiURL = cfg.Cart.APIURL
	}
	if statePath == "" {
		statePath = cfg.Cart.StatePath
	}

	remote, err := newCartRemote(apiURL)
	if err != nil {
		return nil, err
	}

	db, err := persistence.NewSQLiteDatabase(statePath)
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&models.CartStorageModel{}); err != nil {
		_ = db.Close()
		return nil, err
	}

	manager := cartapp.NewSessionManager(remote, persistence.NewGormCartStore(db.DB), log)
	if err := manager.Restore(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	manager.Subscribe(func(ev cart.ChangeEvent) {
		printChangeEvent(out, ev, manager.Snapshot().Currency)
	})
	return &cartSession{manager: manager, db: db}, nil
}

// newCartRemote picks the proxy client or, with --direct, the Storefront API
func newCartRemote(apiURL string) (cart.RemoteService, error) {
	if !cartDirect {
		return ecommerce.NewCartProxyClient(apiURL, cfg.Cart.Timeout)
	}
	if cfg.Shopify.StorefrontToken == "" {
		return nil, errStorefrontNotConfigured
	}
	client, err := ecommerce.NewStorefrontClient(ecommerce.ShopifyConfigFromSettings(cfg.Shopify))
	if err != nil {
		return nil, err
	}
	return ecommerce.NewStorefrontCartService(client), nil
}

// withCartSession opens the session, runs fn and closes it
func withCartSession(cmd *cobra.Command, fn func(ctx context.Context, m *cartapp.SessionManager) error) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	session, err := openCartSession(ctx, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer func() {
		_ = session.Close()
	}()
	return fn(ctx, session.manager)
}

func runCartShow(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	session, err := openCartSession(ctx, io.Discard)
	if err != nil {
		return err
	}
	defer func() {
		_ = session.Close()
	}()
	printSnapshot(cmd.OutOrStdout(), session.manager.Snapshot())
	return nil
}

func runCartAdd(cmd *cobra.Command, args []string) error {
	quantity := 1
	if len(args) == 2 {
		q, err := parseQuantity(args[1])
		if err != nil {
			return err
		}
		quantity = q
	}
	return withCartSession(cmd, func(ctx context.Context, m *cartapp.SessionManager) error {
		_, err := m.AddItem(ctx, args[0], quantity)
		return err
	})
}

func runCartUpdate(cmd *cobra.Command, args []string) error {
	quantity, err := parseQuantity(args[1])
	if err != nil {
		return err
	}
	return withCartSession(cmd, func(ctx context.Context, m *cartapp.SessionManager) error {
		_, err := m.UpdateItem(ctx, args[0], quantity)
		return err
	})
}

func runCartRemove(cmd *cobra.Command, args []string) error {
	return withCartSession(cmd, func(ctx context.Context, m *cartapp.SessionManager) error {
		_, err := m.RemoveItem(ctx, args[0])
		return err
	})
}

func runCartRefresh(cmd *cobra.Command, args []string) error {
	return withCartSession(cmd, func(ctx context.Context, m *cartapp.SessionManager) error {
		_, err := m.Refresh(ctx)
		return err
	})
}

func runCartClear(cmd *cobra.Command, args []string) error {
	return withCartSession(cmd, func(ctx context.Context, m *cartapp.SessionManager) error {
		return m.Clear(ctx)
	})
}

func parseQuantity(s string) (int, error) {
	q, err := strconv.Atoi(s)
	if err != nil || q < 0 {
		return 0, fmt.Errorf("invalid quantity %q: must be a non-negative integer", s)
	}
	return q, nil
}

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, timeout)
}
