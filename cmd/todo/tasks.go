package main

import (
	"context"
	"fmt"
	"time"

	"todoList/internal/app"
	"todoList/internal/deadline"
	"todoList/internal/models/task"
	"todoList/internal/service"

	"github.com/spf13/cobra"
)

func newListCmd(opts *rootOptions) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Показать задачи",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), opts, func(ctx context.Context, a *app.App) error {
				svc := a.Service()
				renderList(cmd.OutOrStdout(), svc.Tasks(all), svc.CompletedCount(), svc.IsDirty(), time.Now())
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&all, "all", "a", false, "показывать выполненные задачи")
	return cmd
}

type taskFlags struct {
	deadline      string
	importance    string
	text          string
	clearDeadline bool
}

func (f *taskFlags) options(now time.Time) ([]task.Option, error) {
	var options []task.Option

	if f.clearDeadline {
		options = append(options, task.WithoutDeadline())
	} else if f.deadline != "" {
		d, err := deadline.NewParser().Parse(f.deadline, now)
		if err != nil {
			return nil, err
		}
		options = append(options, task.WithDeadline(d))
	}

	if f.importance != "" {
		importance, err := task.ParseImportance(f.importance)
		if err != nil {
			return nil, err
		}
		options = append(options, task.WithImportance(importance))
	}
	return options, nil
}

func newAddCmd(opts *rootOptions) *cobra.Command {
	flags := &taskFlags{}

	cmd := &cobra.Command{
		Use:   "add TEXT",
		Short: "Добавить задачу",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			options, err := flags.options(time.Now())
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), opts, func(ctx context.Context, a *app.App) error {
				outcome, err := a.Service().AddTask(ctx, args[0], options...)
				if err != nil {
					return err
				}
				printOutcome(cmd, "добавлена", outcome, a.Service().IsDirty())
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&flags.deadline, "deadline", "d", "", `срок: "2024-06-15 18:00", "tomorrow", "завтра в 10:00"`)
	cmd.Flags().StringVarP(&flags.importance, "importance", "i", "", "low, normal или important")
	return cmd
}

func newEditCmd(opts *rootOptions) *cobra.Command {
	flags := &taskFlags{}

	cmd := &cobra.Command{
		Use:   "edit ID",
		Short: "Изменить задачу",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			options, err := flags.options(time.Now())
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("text") {
				options = append(options, task.WithText(flags.text))
			}
			if len(options) == 0 {
				return fmt.Errorf("нечего менять: укажите --text, --deadline, --clear-deadline или --importance")
			}

			return withApp(cmd.Context(), opts, func(ctx context.Context, a *app.App) error {
				outcome, err := a.Service().EditTask(ctx, args[0], options...)
				if err != nil {
					return err
				}
				printOutcome(cmd, "изменена", outcome, a.Service().IsDirty())
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&flags.text, "text", "t", "", "новый текст")
	cmd.Flags().StringVarP(&flags.deadline, "deadline", "d", "", "новый срок")
	cmd.Flags().BoolVar(&flags.clearDeadline, "clear-deadline", false, "снять срок")
	cmd.Flags().StringVarP(&flags.importance, "importance", "i", "", "low, normal или important")
	cmd.MarkFlagsMutuallyExclusive("deadline", "clear-deadline")
	return cmd
}

func newDoneCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "done ID",
		Short: "Отметить задачу выполненной или вернуть в работу",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), opts, func(ctx context.Context, a *app.App) error {
				outcome, err := a.Service().ToggleDone(ctx, args[0])
				if err != nil {
					return err
				}
				verb := "возвращена в работу"
				if outcome.Task.IsDone {
					verb = "выполнена"
				}
				printOutcome(cmd, verb, outcome, a.Service().IsDirty())
				return nil
			})
		},
	}
}

func newRemoveCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "rm ID",
		Aliases: []string{"delete"},
		Short:   "Удалить задачу",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), opts, func(ctx context.Context, a *app.App) error {
				outcome, err := a.Service().DeleteTask(ctx, args[0])
				if err != nil {
					return err
				}
				printOutcome(cmd, "удалена", outcome, a.Service().IsDirty())
				return nil
			})
		},
	}
}

func newSyncCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Отправить локальный список на сервер",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), opts, func(ctx context.Context, a *app.App) error {
				svc := a.Service()
				if !svc.IsDirty() {
					fmt.Fprintln(cmd.OutOrStdout(), "Список уже совпадает с сервером")
					return nil
				}
				if err := svc.Synchronize(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Список синхронизирован")
				return nil
			})
		},
	}
}

func printOutcome(cmd *cobra.Command, verb string, outcome service.Outcome, dirty bool) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Задача %s %s\n", outcome.Task.ID, verb)
	if !outcome.Synced && dirty {
		fmt.Fprintln(out, warnStyle.Render("Сервер недоступен: изменение сохранено локально и будет отправлено позже"))
	}
}
