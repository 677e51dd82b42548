package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jake-scott/smartrent-lock/internal/pkg/logging"
	"github.com/jake-scott/smartrent-lock/internal/pkg/widgets"
)

var _widgetCmdOpts struct {
	oldIDs []string
	newIDs []string
}

var widgetCmd = &cobra.Command{
	Use:   "widget",
	Short: "Manage the widgets bound to locks",
}

var widgetAddCmd = &cobra.Command{
	Use:   "add <widget-id> <device-id>",
	Short: "Bind a widget to a lock",
	Args:  cobra.ExactArgs(2),

	RunE: func(cmd *cobra.Command, args []string) error {
		return doWidgetAdd(cmd.Context(), args[0], args[1])
	},
}

var widgetListCmd = &cobra.Command{
	Use:   "list",
	Short: "List widget bindings",
	Args:  cobra.NoArgs,

	RunE: func(cmd *cobra.Command, args []string) error {
		return doWidgetList()
	},
}

var widgetRemoveCmd = &cobra.Command{
	Use:   "remove <widget-id>...",
	Short: "Forget widget bindings",
	Args:  cobra.MinimumNArgs(1),

	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := widgetStore()
		if err != nil {
			return err
		}

		for _, id := range args {
			if err := store.Delete(id); err != nil {
				return err
			}
		}
		return nil
	},
}

var widgetRestoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Move bindings to new widget IDs after the widgets were restored",
	Args:  cobra.NoArgs,

	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := widgetStore()
		if err != nil {
			return err
		}
		return store.Restore(_widgetCmdOpts.oldIDs, _widgetCmdOpts.newIDs)
	},
}

var widgetPressCmd = &cobra.Command{
	Use:   "press <widget-id>",
	Short: "Press a widget and show its progress until it goes idle again",
	Args:  cobra.ExactArgs(1),

	RunE: func(cmd *cobra.Command, args []string) error {
		return doWidgetPress(cmd.Context(), args[0])
	},
}

func init() {
	widgetRestoreCmd.Flags().StringSliceVar(&_widgetCmdOpts.oldIDs, "old", nil, "widget IDs before the restore, comma separated")
	widgetRestoreCmd.Flags().StringSliceVar(&_widgetCmdOpts.newIDs, "new", nil, "widget IDs after the restore, in the same order")
	errPanic(widgetRestoreCmd.MarkFlagRequired("old"))
	errPanic(widgetRestoreCmd.MarkFlagRequired("new"))

	widgetCmd.AddCommand(widgetAddCmd, widgetListCmd, widgetRemoveCmd, widgetRestoreCmd, widgetPressCmd)
	rootCmd.AddCommand(widgetCmd)
}

func doWidgetAdd(ctx context.Context, widgetID string, arg string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	deviceID, err := strconv.Atoi(arg)
	if err != nil {
		return fmt.Errorf("device id must be an integer, got %q", arg)
	}

	client, err := clientFromConfig()
	if err != nil {
		return err
	}
	store, err := widgetStore()
	if err != nil {
		return err
	}

	locks, err := client.ListLocks(ctx)
	if err != nil {
		return err
	}

	for _, l := range locks {
		if l.DeviceID == deviceID {
			if err := store.Save(widgetID, l); err != nil {
				return err
			}
			fmt.Printf("%s: %s\n", widgetID, l.DisplayName())
			return nil
		}
	}

	return fmt.Errorf("no lock with device id %d on this account", deviceID)
}

func doWidgetList() error {
	store, err := widgetStore()
	if err != nil {
		return err
	}

	bindings, err := store.List()
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "WIDGET\tDEVICE\tLOCK")
	for _, b := range bindings {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", b.WidgetID, b.Lock.DeviceID, b.Lock.DisplayName())
	}
	return tw.Flush()
}

func pressAction() (widgets.Action, error) {
	return widgets.ParseAction(viper.GetString("widgets.action"))
}

func doWidgetPress(ctx context.Context, widgetID string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	action, err := pressAction()
	if err != nil {
		return err
	}

	client, err := clientFromConfig()
	if err != nil {
		return err
	}
	store, err := widgetStore()
	if err != nil {
		return err
	}

	ui := widgets.NewUILoop(widgets.NewWriterSink(os.Stdout))
	defer ui.Close()

	controller := widgets.NewController(store, client, ui, 1).
		WithHold(viper.GetDuration("widgets.hold")).
		WithAction(action)

	ctx = logging.WithTxnID(ctx, uuid.New().String())
	if err := controller.Press(ctx, widgetID); err != nil {
		return err
	}

	controller.Wait()
	return nil
}
