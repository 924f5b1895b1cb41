package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/rryowa/dangbai_session/internal/client"
	"github.com/rryowa/dangbai_session/internal/models"
	"github.com/rryowa/dangbai_session/internal/service"
)

var errUsage = errors.New("invalid arguments")

func (a *app) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "login":
		return a.login(ctx, args)
	case "register":
		return a.register(ctx, args)
	case "whoami":
		return a.whoami(ctx)
	case "get":
		return a.get(ctx, args)
	case "admin":
		return a.admin(ctx)
	case "logout":
		return a.auth.Logout(ctx)
	case "logout-all":
		return a.auth.LogoutAll(ctx)
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	username := fs.String("u", "", "username")
	password := fs.String("p", "", "password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *username == "" || *password == "" {
		return fmt.Errorf("%w: login needs -u and -p", errUsage)
	}

	user, err := a.auth.Login(ctx, *username, *password)
	if err != nil {
		return err
	}
	return printJSON(user)
}

func (a *app) register(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	var req models.RegisterRequest
	fs.StringVar(&req.Username, "u", "", "username")
	fs.StringVar(&req.Email, "e", "", "email")
	fs.StringVar(&req.Password, "p", "", "password")
	fs.StringVar(&req.DisplayName, "n", "", "display name")
	fs.StringVar(&req.Phone, "phone", "", "phone")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if req.Username == "" || req.Email == "" || req.Password == "" || req.DisplayName == "" {
		return fmt.Errorf("%w: register needs -u, -e, -p and -n", errUsage)
	}

	user, err := a.auth.Register(ctx, req)
	if err != nil {
		return err
	}
	return printJSON(user)
}

func (a *app) whoami(ctx context.Context) error {
	stored, ok := a.auth.CurrentUser()
	if !ok {
		fmt.Println("not signed in")
		return nil
	}
	a.log.Debugw("stored session", "user_id", stored.UserID, "username", stored.Username)

	user, err := client.Call[models.User](ctx, a.dispatcher, client.Request{
		Method: http.MethodGet,
		Path:   client.PathMe,
	})
	if err != nil {
		return err
	}
	return printJSON(user)
}

// get issues an authenticated GET. Trailing key=value arguments become the
// query string.
func (a *app) get(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: get needs a path", errUsage)
	}
	query := url.Values{}
	for _, kv := range args[1:] {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return fmt.Errorf("%w: query argument %q is not key=value", errUsage, kv)
		}
		query.Add(k, v)
	}

	data, err := client.Call[json.RawMessage](ctx, a.dispatcher, client.Request{
		Method: http.MethodGet,
		Path:   args[0],
		Query:  query,
	})
	if err != nil {
		return err
	}
	return printJSON(data)
}

func (a *app) admin(ctx context.Context) error {
	if d := a.guard.Check(service.RequireAdmin); !d.Allowed {
		fmt.Fprintf(os.Stderr, "%s, continue at %s\n", d.Reason, d.RedirectTo)
		return nil
	}

	stats, err := client.Call[models.DashboardStats](ctx, a.dispatcher, client.Request{
		Method: http.MethodGet,
		Path:   client.PathAdminDashboard,
	})
	if err != nil {
		return err
	}
	return printJSON(stats)
}

func (a *app) printMetrics() {
	families, err := a.registry.Gather()
	if err != nil {
		a.log.Warnw("failed to gather metrics", "error", err)
		return
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			labels := make([]string, 0, len(m.GetLabel()))
			for _, lp := range m.GetLabel() {
				labels = append(labels, lp.GetName()+"="+lp.GetValue())
			}
			fmt.Fprintf(os.Stderr, "%s{%s} %g\n", mf.GetName(), strings.Join(labels, ","), m.GetCounter().GetValue())
		}
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// describe prefers the user-facing text of backend failures.
func describe(err error) string {
	if apiErr, ok := client.AsAPIError(err); ok {
		if apiErr.Cause != nil {
			return fmt.Sprintf("%s (%v)", apiErr.DisplayMessage(), apiErr.Cause)
		}
		return apiErr.DisplayMessage()
	}
	return err.Error()
}
