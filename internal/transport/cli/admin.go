package cli

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/go-password-vault/internal/application/admin"
)

// AdminMenu is the numbered operator menu.
type AdminMenu struct {
	con *Console
	svc admin.Service
}

func NewAdminMenu(con *Console, svc admin.Service) *AdminMenu {
	return &AdminMenu{con: con, svc: svc}
}

type menuItem struct {
	label string
	run   func(ctx context.Context) error
}

func (m *AdminMenu) items() []menuItem {
	return []menuItem{
		{"List users", m.listUsers},
		{"View user data", m.userData},
		{"Delete user", m.deleteUser},
		{"List collections", m.listCollections},
		{"Drop collection", m.dropCollection},
		{"Drop database", m.dropDatabase},
		{"Exit", func(context.Context) error { return errQuit }},
	}
}

func (m *AdminMenu) Run(ctx context.Context) error {
	items := m.items()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		m.con.Println()
		for i, it := range items {
			m.con.Printf("%d. %s\n", i+1, it.label)
		}
		choice, err := m.con.Prompt("Choose an option: ")
		if err != nil {
			if errors.Is(err, errQuit) {
				return nil
			}
			return err
		}
		var n int
		if _, err := fmt.Sscanf(choice, "%d", &n); err != nil || n < 1 || n > len(items) {
			m.con.Println("invalid option")
			continue
		}
		if err := items[n-1].run(ctx); err != nil {
			if errors.Is(err, errQuit) {
				return nil
			}
			m.con.Fail(err)
		}
	}
}

func (m *AdminMenu) listUsers(ctx context.Context) error {
	users, err := m.svc.ListUsers(ctx)
	if err != nil {
		return err
	}
	if len(users) == 0 {
		m.con.Println("no users")
		return nil
	}
	tw := tabwriter.NewWriter(m.con.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "USERNAME\tEMAIL\tROLE\tVERIFIED\tCREATED")
	for _, u := range users {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%s\n", u.Username, u.Email, u.Role, u.EmailVerified, u.CreatedAt.Format("2006-01-02"))
	}
	return tw.Flush()
}

func (m *AdminMenu) userData(ctx context.Context) error {
	username, err := m.con.Prompt("Username: ")
	if err != nil {
		return err
	}
	a, err := m.svc.GetUserData(ctx, username)
	if err != nil {
		return err
	}
	if len(a.Data) == 0 {
		m.con.Printf("%s has no data records\n", a.Username)
		return nil
	}
	tw := tabwriter.NewWriter(m.con.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RECORD\tINFO")
	for _, d := range a.Data {
		fmt.Fprintf(tw, "%s\t%s\n", d.RecordID, d.Info)
	}
	return tw.Flush()
}

func (m *AdminMenu) deleteUser(ctx context.Context) error {
	username, err := m.con.Prompt("Username: ")
	if err != nil {
		return err
	}
	pw, err := m.con.Password("User's password: ")
	if err != nil {
		return err
	}
	if err := m.svc.DeleteUser(ctx, username, pw); err != nil {
		return err
	}
	m.con.Printf("user %s deleted\n", username)
	return nil
}

func (m *AdminMenu) listCollections(ctx context.Context) error {
	names, err := m.svc.ListCollections(ctx)
	if err != nil {
		return err
	}
	for _, n := range names {
		m.con.Println(" ", n)
	}
	return nil
}

func (m *AdminMenu) dropCollection(ctx context.Context) error {
	name, err := m.con.Prompt("Collection: ")
	if err != nil {
		return err
	}
	archive, err := m.svc.DropCollection(ctx, name)
	if err != nil {
		return err
	}
	m.con.Printf("collection %s dropped\n", name)
	if archive != "" {
		m.con.Printf("archived to %s\n", archive)
	}
	return nil
}

func (m *AdminMenu) dropDatabase(ctx context.Context) error {
	answer, err := m.con.Prompt(fmt.Sprintf("This deletes every collection. Type %q to continue: ", admin.DropConfirmation))
	if err != nil {
		return err
	}
	if answer != admin.DropConfirmation {
		m.con.Println("aborted")
		return nil
	}
	dropped, err := m.svc.DropDatabase(ctx, answer)
	if err != nil {
		return err
	}
	m.con.Printf("dropped %d collections\n", len(dropped))
	return nil
}
