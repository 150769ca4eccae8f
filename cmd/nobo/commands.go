package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/zberg/go-nobo/internal/bridge"
	"github.com/zberg/go-nobo/internal/httpapi"
	"github.com/zberg/go-nobo/internal/metrics"
	"github.com/zberg/go-nobo/pkg/nobo"
)

const reconnectDelay = 10 * time.Second

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a TOML config file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Path to a .env file (default: ./.env if present)")
	rootCmd.PersistentFlags().StringVar(&flagIP, "ip", "", "IP address of the hub (skips discovery)")
	rootCmd.PersistentFlags().StringVar(&flagSerial, "serial", "", "Hub serial: all 12 digits, or the last 3 when discovering")
	rootCmd.PersistentFlags().StringVar(&flagLevel, "log-level", "", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(setTempCmd)
	rootCmd.AddCommand(overrideCmd)
	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(bridgeCmd)

	profileCmd.AddCommand(profileListCmd)
	profileCmd.AddCommand(profileShowCmd)
	profileCmd.AddCommand(profileCopyCmd)
	profileCmd.AddCommand(profileRemoveCmd)

	overrideCmd.Flags().String("zone", "", "Zone id (default: all zones)")
	overrideCmd.Flags().String("type", "constant", "Override type (now, timer, from-to, constant)")
	overrideCmd.Flags().String("start", "", "Start time, YYYYMMDDHHMM on a quarter hour")
	overrideCmd.Flags().String("end", "", "End time, YYYYMMDDHHMM on a quarter hour")
}

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Discover Nobø hubs on the network",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("Discovering hubs...")
		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.DiscoveryTimeout)
		defer cancel()

		results, err := nobo.Discover(ctx)
		if err != nil {
			fmt.Printf("Error discovering: %v\n", err)
			return
		}

		if len(results) == 0 {
			fmt.Println("No hubs found.")
			return
		}

		for _, res := range results {
			fmt.Printf("Found hub at %s (serial prefix %s)\n", res.IP, res.Serial)
		}
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show hub, zones, components and overrides",
	Run: func(cmd *cobra.Command, args []string) {
		hub := getHub(cmd.Context())
		defer hub.Close()
		store := hub.Store()

		if info, ok := store.HubInfo(); ok {
			fmt.Printf("Hub %s (%s), software %s\n", info.Name, info.Serial, info.SoftwareVersion)
		}

		fmt.Println("\nZones:")
		now := time.Now()
		for _, z := range store.Zones() {
			st, err := store.ZoneStatus(z.ID, now)
			if err != nil {
				fmt.Printf("Zone %s: %v\n", z.ID, err)
				continue
			}
			temp := st.Temperature
			if temp == "" {
				temp = "n/a"
			}
			fmt.Printf("Zone %s %q: Mode=%s, Comfort=%d, Eco=%d, Temp=%s\n", st.ID, st.Name, st.Mode, st.ComfortC, st.EcoC, temp)
		}

		fmt.Println("\nComponents:")
		for _, c := range store.Components() {
			model := "unknown model"
			if c.Model != nil {
				model = c.Model.Name
			}
			zone := "-"
			if c.InZone() {
				zone = c.ZoneID
			}
			fmt.Printf("%s %q: %s, Zone=%s\n", c.Serial, c.Name, model, zone)
		}

		if overrides := store.Overrides(); len(overrides) > 0 {
			fmt.Println("\nOverrides:")
			for _, o := range overrides {
				fmt.Printf("Override %s: Mode=%s, Type=%s, Target=%s/%s\n", o.ID, o.Mode, o.Type, o.TargetType, o.TargetID)
			}
		}
	},
}

var setTempCmd = &cobra.Command{
	Use:   "set-temp [zone-id] [comfort] [eco]",
	Short: "Set the comfort and eco temperatures of a zone",
	Args:  cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		comfort, err := strconv.Atoi(args[1])
		if err != nil {
			fmt.Printf("Invalid comfort temperature '%s': must be a number\n", args[1])
			os.Exit(1)
		}
		eco, err := strconv.Atoi(args[2])
		if err != nil {
			fmt.Printf("Invalid eco temperature '%s': must be a number\n", args[2])
			os.Exit(1)
		}

		hub := getHub(cmd.Context())
		defer hub.Close()

		if err := hub.SetZoneTemperatures(cmd.Context(), args[0], comfort, eco); err != nil {
			fmt.Printf("Error setting temperatures: %v\n", err)
			return
		}
		fmt.Println("Command sent successfully.")
	},
}

var overrideModes = map[string]nobo.OverrideMode{
	"normal":  nobo.OverrideNormal,
	"comfort": nobo.OverrideComfort,
	"eco":     nobo.OverrideEco,
	"away":    nobo.OverrideAway,
}

var overrideTypes = map[string]nobo.OverrideType{
	"now":      nobo.OverrideNow,
	"timer":    nobo.OverrideTimer,
	"from-to":  nobo.OverrideFromTo,
	"constant": nobo.OverrideConstant,
}

// overrideRequest builds a request from CLI values. Times are given to the
// minute and padded with zero seconds.
func overrideRequest(mode, typ, zone, start, end string) (nobo.OverrideRequest, error) {
	m, ok := overrideModes[mode]
	if !ok {
		return nobo.OverrideRequest{}, fmt.Errorf("unknown mode %q (normal, comfort, eco, away)", mode)
	}
	t, ok := overrideTypes[typ]
	if !ok {
		return nobo.OverrideRequest{}, fmt.Errorf("unknown type %q (now, timer, from-to, constant)", typ)
	}
	req := nobo.OverrideRequest{Mode: m, Type: t, TargetType: nobo.TargetGlobal}
	if zone != "" {
		req.TargetType = nobo.TargetZone
		req.TargetID = zone
	}
	if start != "" {
		req.StartTime = start + "00"
	}
	if end != "" {
		req.EndTime = end + "00"
	}
	return req, nil
}

var overrideCmd = &cobra.Command{
	Use:   "override [mode]",
	Short: "Create an override (normal, comfort, eco, away)",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		zone, _ := cmd.Flags().GetString("zone")
		typ, _ := cmd.Flags().GetString("type")
		start, _ := cmd.Flags().GetString("start")
		end, _ := cmd.Flags().GetString("end")

		req, err := overrideRequest(args[0], typ, zone, start, end)
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		hub := getHub(cmd.Context())
		defer hub.Close()

		if err := hub.CreateOverride(cmd.Context(), req); err != nil {
			fmt.Printf("Error creating override: %v\n", err)
			return
		}
		fmt.Println("Command sent successfully.")
	},
}

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage week profiles",
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List week profiles",
	Run: func(cmd *cobra.Command, args []string) {
		hub := getHub(cmd.Context())
		defer hub.Close()

		for _, w := range hub.Store().WeekProfiles() {
			fmt.Printf("Profile %s: %s\n", w.ID, w.Name)
		}
	},
}

var profileShowCmd = &cobra.Command{
	Use:   "show [profile-id]",
	Short: "Show the timetable of a week profile",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		hub := getHub(cmd.Context())
		defer hub.Close()

		w, ok := hub.Store().WeekProfile(args[0])
		if !ok {
			fmt.Printf("Unknown week profile %s\n", args[0])
			os.Exit(1)
		}

		fmt.Printf("Profile %s: %s\n", w.ID, w.Name)
		tt := w.Timetable()
		for _, day := range nobo.ScheduleWeekdays {
			fmt.Printf("%-9s", day)
			for _, seg := range tt[day] {
				fmt.Printf(" %s %s", seg.Time, seg.Mode)
			}
			fmt.Println()
		}
	},
}

var profileCopyCmd = &cobra.Command{
	Use:   "copy [profile-id] [new-name]",
	Short: "Copy a week profile under a new name",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		hub := getHub(cmd.Context())
		defer hub.Close()

		src, ok := hub.Store().WeekProfile(args[0])
		if !ok {
			fmt.Printf("Unknown week profile %s\n", args[0])
			os.Exit(1)
		}
		w, err := nobo.BuildWeekProfile(args[1], src.Timetable())
		if err != nil {
			fmt.Printf("Error building profile: %v\n", err)
			os.Exit(1)
		}
		if err := hub.AddWeekProfile(cmd.Context(), w); err != nil {
			fmt.Printf("Error adding profile: %v\n", err)
			return
		}
		fmt.Println("Command sent successfully.")
	},
}

var profileRemoveCmd = &cobra.Command{
	Use:   "remove [profile-id]",
	Short: "Remove a week profile",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		hub := getHub(cmd.Context())
		defer hub.Close()

		if err := hub.RemoveWeekProfile(cmd.Context(), args[0]); err != nil {
			fmt.Printf("Error removing profile: %v\n", err)
			return
		}
		fmt.Println("Command sent successfully.")
	},
}

var bridgeCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Mirror hub state to MQTT and serve it over HTTP",
	Long: `Keeps a session with the hub open and publishes zone state to an MQTT broker
and/or serves it over HTTP, reconnecting when the session ends.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runBridge(ctx)
	},
}

func runBridge(ctx context.Context) error {
	if cfg.MQTT.Broker == "" && cfg.HTTP.Listen == "" {
		return errors.New("nothing to do: configure an MQTT broker and/or an HTTP listen address")
	}
	logger := cfg.logger()

	hub, err := nobo.NewHub(cfg.Serial, cfg.hubOptions(logger)...)
	if err != nil {
		return err
	}
	defer hub.Close()

	reg := prometheus.NewRegistry()
	collector := metrics.New(reg)
	metricNotes, cancelMetrics := hub.Subscribe(256)
	defer cancelMetrics()
	go collector.Run(ctx, metricNotes)

	if cfg.MQTT.Broker != "" {
		mqttCfg, err := cfg.mqttConfig()
		if err != nil {
			return err
		}
		pub, err := bridge.DialMQTT(mqttCfg)
		if err != nil {
			return err
		}
		defer pub.Close()
		logger.Info("connected to MQTT broker", "broker", mqttCfg.Broker)

		notes, cancelNotes := hub.Subscribe(256)
		defer cancelNotes()
		b := bridge.New(hub.Store(), pub, cfg.MQTT.Prefix, bridge.WithLogger(logger))
		go b.Run(ctx, notes)
	}

	if cfg.HTTP.Listen != "" {
		api := httpapi.New(hub.Store(), hub,
			httpapi.WithGatherer(reg),
			httpapi.WithAccessLog(os.Stderr),
			httpapi.WithLogger(logger),
		)
		srv := &http.Server{
			Addr:              cfg.HTTP.Listen,
			Handler:           api.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("serving HTTP", "addr", cfg.HTTP.Listen)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("HTTP server failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	for {
		if err := hub.Connect(ctx); err != nil {
			logger.Warn("connect failed", "error", err)
		} else {
			select {
			case <-hub.Done():
				logger.Warn("session ended", "error", hub.Err())
			case <-ctx.Done():
			}
		}

		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			return nil
		case <-time.After(reconnectDelay):
		}
	}
}

func getHub(ctx context.Context) *nobo.Hub {
	if cfg.Address != "" && cfg.Serial == "" {
		fmt.Println("Serial required with --ip. Use --serial or run discover first.")
		os.Exit(1)
	}

	hub, err := nobo.NewHub(cfg.Serial, cfg.hubOptions(cfg.logger())...)
	if err != nil {
		fmt.Printf("Error configuring hub: %v\n", err)
		os.Exit(1)
	}

	connectCtx, cancel := context.WithTimeout(ctx, cfg.DiscoveryTimeout+cfg.ConnectTimeout)
	defer cancel()
	if err := hub.Connect(connectCtx); err != nil {
		fmt.Printf("Error connecting to hub: %v\n", err)
		os.Exit(1)
	}
	return hub
}
