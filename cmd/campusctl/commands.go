package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrEthical07/goCampus/api"
	"github.com/MrEthical07/goCampus/metrics/export/prometheus"
	"github.com/MrEthical07/goCampus/session"
)

const envPassword = "GOCAMPUS_PASSWORD"

var errLoginFailed = errors.New("login failed")

func newLoginCmd(a *app) *cobra.Command {
	var username, password, userType string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and persist the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv(envPassword)
			}
			cred := session.Credentials{Username: username, Password: password}
			if userType != "" {
				t, err := api.ParseUserType(userType)
				if err != nil {
					return err
				}
				cred.UserType = t
			}

			res := a.client.Login(cmd.Context(), cred)
			if !res.Success {
				return fmt.Errorf("%w: %s", errLoginFailed, res.Message)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s (%s)\n", res.User.Username, res.User.UserType)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "account name")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (default $"+envPassword+")")
	cmd.Flags().StringVarP(&userType, "type", "t", "", "account type: student, teacher, admin or 1-3")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the persisted session",
		RunE: func(cmd *cobra.Command, args []string) error {
			a.client.Logout(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), "logged out")
			return nil
		},
	}
}

// whoami output leaves the token out.
type whoami struct {
	IsLogin   bool              `json:"isLogin"`
	UserInfo  session.UserInfo  `json:"userInfo"`
	ExpiresAt *time.Time        `json:"expiresAt,omitempty"`
	Warnings  map[string]string `json:"warnings,omitempty"`
}

func newWhoamiCmd(a *app) *cobra.Command {
	var refresh bool

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Restore the session and print the signed-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if !a.client.CheckLogin(ctx) {
				return writeJSON(cmd.OutOrStdout(), whoami{})
			}
			out := whoami{}
			if refresh {
				if res := a.client.RefreshUserInfo(ctx); !res.Success {
					out.Warnings = map[string]string{"refresh": res.Message}
				}
			}
			state := a.client.State()
			out.IsLogin = state.IsLogin
			out.UserInfo = state.UserInfo
			if !state.ExpiresAt.IsZero() {
				exp := state.ExpiresAt.UTC()
				out.ExpiresAt = &exp
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "fetch the profile from the backend first")
	return cmd
}

func newProfileCmd(a *app) *cobra.Command {
	var nickname, phone, avatar string

	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Update the signed-in user's profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !a.client.CheckLogin(cmd.Context()) {
				return errors.New("not logged in")
			}
			var update api.ProfileUpdate
			if cmd.Flags().Changed("nickname") {
				update.Nickname = &nickname
			}
			if cmd.Flags().Changed("phone") {
				update.Phone = &phone
			}
			if cmd.Flags().Changed("avatar") {
				update.Avatar = &avatar
			}
			if update == (api.ProfileUpdate{}) {
				return errors.New("nothing to update")
			}
			res := a.client.UpdateProfile(cmd.Context(), update)
			if !res.Success {
				return errors.New(res.Message)
			}
			return writeJSON(cmd.OutOrStdout(), a.client.State().UserInfo)
		},
	}
	cmd.Flags().StringVar(&nickname, "nickname", "", "display name")
	cmd.Flags().StringVar(&phone, "phone", "", "phone number")
	cmd.Flags().StringVar(&avatar, "avatar", "", "avatar URL")
	return cmd
}

func newRequestCmd(a *app) *cobra.Command {
	var data string

	cmd := &cobra.Command{
		Use:   "request METHOD PATH",
		Short: "Send a raw API call and print the envelope",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a.client.CheckLogin(ctx)

			opts := api.Options{Method: strings.ToUpper(args[0]), URL: args[1]}
			if data != "" {
				var body any
				if err := json.Unmarshal([]byte(data), &body); err != nil {
					return fmt.Errorf("--data: %w", err)
				}
				opts.Data = body
			}
			env, err := a.client.Gateway().Request(ctx, opts)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), env)
		},
	}
	cmd.Flags().StringVarP(&data, "data", "d", "", "JSON body, or query parameters for GET")
	return cmd
}

func newUploadCmd(a *app) *cobra.Command {
	var avatar bool

	cmd := &cobra.Command{
		Use:   "upload FILE",
		Short: "Upload a file, or the signed-in user's avatar with --avatar",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a.client.CheckLogin(ctx)

			if avatar {
				res := a.client.UploadAvatar(ctx, args[0])
				if !res.Success {
					return errors.New(res.Message)
				}
				fmt.Fprintln(cmd.OutOrStdout(), a.client.State().UserInfo.Avatar)
				return nil
			}
			res, err := a.client.API().UploadFile(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Location())
			return nil
		},
	}
	cmd.Flags().BoolVar(&avatar, "avatar", false, "set the uploaded image as avatar")
	return cmd
}

func newListCmd(a *app) *cobra.Command {
	var q api.ListQuery

	cmd := &cobra.Command{
		Use:       "list students|courses|schedules|homeworks",
		Short:     "Print one page of a collection",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"students", "courses", "schedules", "homeworks"},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a.client.CheckLogin(ctx)

			var (
				page any
				err  error
			)
			switch args[0] {
			case "students":
				page, err = a.client.API().GetStudents(ctx, q)
			case "courses":
				page, err = a.client.API().GetCourses(ctx, q)
			case "schedules":
				page, err = a.client.API().GetSchedules(ctx, q)
			case "homeworks":
				page, err = a.client.API().GetHomeworks(ctx, q)
			}
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), page)
		},
	}
	cmd.Flags().IntVar(&q.Page, "page", 1, "page number")
	cmd.Flags().IntVar(&q.PageSize, "page-size", 20, "items per page")
	cmd.Flags().StringVarP(&q.Keyword, "keyword", "k", "", "search keyword")
	cmd.Flags().StringVar(&q.CourseID, "course", "", "filter by course id")
	cmd.Flags().StringVar(&q.Status, "status", "", "filter by status")
	return cmd
}

func newMetricsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "metrics",
		Short: "Restore the session and print this process's counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			a.client.CheckLogin(cmd.Context())
			_, err := io.WriteString(cmd.OutOrStdout(), prometheus.NewPrometheusExporter(a.client).Render())
			return err
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
