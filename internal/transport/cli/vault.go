package cli

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/go-password-vault/internal/application/auth"
	"github.com/go-password-vault/internal/application/vault"
	"github.com/go-password-vault/internal/domain"
)

// VaultOpener returns the vault bound to a user.
type VaultOpener func(userID string) (vault.Service, error)

// VaultREPL is the interactive password manager.
type VaultREPL struct {
	con    *Console
	mgr    *auth.Manager
	open   VaultOpener
	vault  vault.Service
	vaultU string
}

func NewVaultREPL(con *Console, mgr *auth.Manager, open VaultOpener) *VaultREPL {
	return &VaultREPL{con: con, mgr: mgr, open: open}
}

type command struct {
	help   string
	authed bool
	run    func(ctx context.Context) error
}

func (r *VaultREPL) commands() map[string]command {
	return map[string]command{
		"register":      {help: "create an account", run: r.register},
		"login":         {help: "log in", run: r.login},
		"forgot":        {help: "reset a forgotten password", run: r.forgot},
		"add":           {help: "save a password", authed: true, run: r.add},
		"list":          {help: "list saved passwords", authed: true, run: r.list},
		"search":        {help: "search by website or username", authed: true, run: r.search},
		"update":        {help: "change a saved password", authed: true, run: r.update},
		"delete":        {help: "remove a saved password", authed: true, run: r.remove},
		"websites":      {help: "list websites", authed: true, run: r.websites},
		"passwd":        {help: "change the master password", authed: true, run: r.passwd},
		"deleteaccount": {help: "delete the account and every saved password", authed: true, run: r.deleteAccount},
		"logout":        {help: "log out", authed: true, run: r.logout},
		"exit":          {help: "quit", run: func(context.Context) error { return errQuit }},
	}
}

// Run reads commands until exit or end of input. Service errors are printed and
// the loop continues.
func (r *VaultREPL) Run(ctx context.Context) error {
	cmds := r.commands()
	r.con.Println("password vault. type help for commands.")
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		name, err := r.con.Prompt(r.prompt())
		if err != nil {
			return r.finish(ctx, err)
		}
		name = strings.ToLower(name)
		if name == "" {
			continue
		}
		if name == "help" {
			r.help(cmds)
			continue
		}
		cmd, ok := cmds[name]
		if !ok {
			r.con.Printf("unknown command %q\n", name)
			continue
		}
		if cmd.authed && !r.mgr.IsLoggedIn() {
			r.con.Println("please log in first")
			continue
		}
		if err := cmd.run(ctx); err != nil {
			if errors.Is(err, errQuit) {
				return r.finish(ctx, nil)
			}
			r.con.Fail(err)
		}
	}
}

func (r *VaultREPL) finish(ctx context.Context, err error) error {
	if lerr := r.mgr.Logout(ctx); lerr != nil {
		r.con.Fail(lerr)
	}
	if err == nil || errors.Is(err, errQuit) {
		return nil
	}
	return err
}

func (r *VaultREPL) prompt() string {
	if s := r.mgr.CurrentUser(); s != nil {
		return s.Username + "> "
	}
	return "> "
}

func (r *VaultREPL) help(cmds map[string]command) {
	names := make([]string, 0, len(cmds))
	for n := range cmds {
		names = append(names, n)
	}
	sort.Strings(names)
	tw := tabwriter.NewWriter(r.con.out, 0, 4, 2, ' ', 0)
	for _, n := range names {
		fmt.Fprintf(tw, "  %s\t%s\n", n, cmds[n].help)
	}
	tw.Flush()
}

// current returns the vault for the logged-in user, opening it on first use.
func (r *VaultREPL) current() (vault.Service, error) {
	sess := r.mgr.CurrentUser()
	if sess == nil {
		return nil, fmt.Errorf("not logged in: %w", domain.ErrUnauthorized)
	}
	if r.vault != nil && r.vaultU == sess.UserID {
		return r.vault, nil
	}
	v, err := r.open(sess.UserID)
	if err != nil {
		return nil, err
	}
	r.vault, r.vaultU = v, sess.UserID
	return v, nil
}

func (r *VaultREPL) newPassword(label string) (string, error) {
	pw, err := r.con.Password(label)
	if err != nil {
		return "", err
	}
	again, err := r.con.Password("Repeat: ")
	if err != nil {
		return "", err
	}
	if pw != again {
		return "", fmt.Errorf("passwords do not match: %w", domain.ErrBadRequest)
	}
	return pw, nil
}

func (r *VaultREPL) register(ctx context.Context) error {
	username, err := r.con.Prompt("Username: ")
	if err != nil {
		return err
	}
	email, err := r.con.Prompt("Email: ")
	if err != nil {
		return err
	}
	svc := r.mgr.Auth()
	if err := svc.RequestRegistrationOTP(ctx, username, email); err != nil {
		return err
	}
	r.con.Printf("a verification code was sent to %s\n", email)
	code, err := r.con.Prompt("Code: ")
	if err != nil {
		return err
	}
	pw, err := r.newPassword("Master password: ")
	if err != nil {
		return err
	}
	a, err := svc.Register(ctx, domain.RegisterRequest{Username: username, Email: email, Password: pw, OTP: code})
	if err != nil {
		return err
	}
	r.con.Printf("account %s created\n", a.Username)
	return nil
}

func (r *VaultREPL) login(ctx context.Context) error {
	username, err := r.con.Prompt("Username: ")
	if err != nil {
		return err
	}
	pw, err := r.con.Password("Master password: ")
	if err != nil {
		return err
	}
	sess, err := r.mgr.Login(ctx, username, pw)
	if err != nil {
		return err
	}
	r.vault, r.vaultU = nil, ""
	r.con.Printf("welcome, %s\n", sess.Username)
	return nil
}

func (r *VaultREPL) forgot(ctx context.Context) error {
	ident, err := r.con.Prompt("Username or email: ")
	if err != nil {
		return err
	}
	svc := r.mgr.Auth()
	if err := svc.RequestPasswordReset(ctx, ident); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	r.con.Println("if the account exists, a reset code was sent")
	email, err := r.con.Prompt("Email: ")
	if err != nil {
		return err
	}
	code, err := r.con.Prompt("Code: ")
	if err != nil {
		return err
	}
	pw, err := r.newPassword("New master password: ")
	if err != nil {
		return err
	}
	if err := svc.ResetPassword(ctx, email, code, pw); err != nil {
		return err
	}
	r.con.Println("password reset, please log in")
	return nil
}

func (r *VaultREPL) add(ctx context.Context) error {
	v, err := r.current()
	if err != nil {
		return err
	}
	website, err := r.con.Prompt("Website: ")
	if err != nil {
		return err
	}
	username, err := r.con.Prompt("Username: ")
	if err != nil {
		return err
	}
	pw, err := r.con.Password("Password: ")
	if err != nil {
		return err
	}
	notes, err := r.con.Prompt("Notes: ")
	if err != nil {
		return err
	}
	if _, err := v.AddPassword(ctx, website, username, pw, notes); err != nil {
		return err
	}
	r.con.Println("saved")
	return nil
}

func (r *VaultREPL) list(ctx context.Context) error {
	v, err := r.current()
	if err != nil {
		return err
	}
	creds, err := v.ListPasswords(ctx)
	if err != nil {
		return err
	}
	r.printCredentials(creds)
	return nil
}

func (r *VaultREPL) search(ctx context.Context) error {
	v, err := r.current()
	if err != nil {
		return err
	}
	q, err := r.con.Prompt("Search: ")
	if err != nil {
		return err
	}
	creds, err := v.SearchPasswords(ctx, q)
	if err != nil {
		return err
	}
	r.printCredentials(creds)
	return nil
}

func (r *VaultREPL) update(ctx context.Context) error {
	v, err := r.current()
	if err != nil {
		return err
	}
	website, err := r.con.Prompt("Website: ")
	if err != nil {
		return err
	}
	oldUser, err := r.con.Prompt("Current username: ")
	if err != nil {
		return err
	}
	newUser, err := r.con.Prompt("New username (blank keeps it): ")
	if err != nil {
		return err
	}
	if newUser == "" {
		newUser = oldUser
	}
	pw, err := r.con.Password("New password: ")
	if err != nil {
		return err
	}
	notes, err := r.con.Prompt("Notes: ")
	if err != nil {
		return err
	}
	ok, err := v.UpdatePassword(ctx, website, oldUser, newUser, pw, notes)
	if err != nil {
		return err
	}
	if !ok {
		r.con.Println("no matching entry")
		return nil
	}
	r.con.Println("updated")
	return nil
}

func (r *VaultREPL) remove(ctx context.Context) error {
	v, err := r.current()
	if err != nil {
		return err
	}
	website, err := r.con.Prompt("Website: ")
	if err != nil {
		return err
	}
	username, err := r.con.Prompt("Username: ")
	if err != nil {
		return err
	}
	ok, err := v.DeletePassword(ctx, website, username)
	if err != nil {
		return err
	}
	if !ok {
		r.con.Println("no matching entry")
		return nil
	}
	r.con.Println("deleted")
	return nil
}

func (r *VaultREPL) websites(ctx context.Context) error {
	v, err := r.current()
	if err != nil {
		return err
	}
	sites, err := v.GetWebsites(ctx)
	if err != nil {
		return err
	}
	if len(sites) == 0 {
		r.con.Println("no websites saved")
		return nil
	}
	for _, s := range sites {
		r.con.Println(" ", s)
	}
	return nil
}

func (r *VaultREPL) passwd(ctx context.Context) error {
	old, err := r.con.Password("Current master password: ")
	if err != nil {
		return err
	}
	pw, err := r.newPassword("New master password: ")
	if err != nil {
		return err
	}
	if err := r.mgr.ChangePassword(ctx, old, pw); err != nil {
		return err
	}
	r.con.Println("master password changed")
	return nil
}

func (r *VaultREPL) deleteAccount(ctx context.Context) error {
	pw, err := r.con.Password("Master password: ")
	if err != nil {
		return err
	}
	answer, err := r.con.Prompt(`This removes the account and all saved passwords. Type "yes" to continue: `)
	if err != nil {
		return err
	}
	if answer != "yes" {
		r.con.Println("aborted")
		return nil
	}
	if err := r.mgr.DeleteAccount(ctx, pw); err != nil {
		return err
	}
	r.vault, r.vaultU = nil, ""
	r.con.Println("account deleted")
	return nil
}

func (r *VaultREPL) logout(ctx context.Context) error {
	r.vault, r.vaultU = nil, ""
	if err := r.mgr.Logout(ctx); err != nil {
		return err
	}
	r.con.Println("logged out")
	return nil
}

func (r *VaultREPL) printCredentials(creds []domain.Credential) {
	if len(creds) == 0 {
		r.con.Println("no passwords found")
		return
	}
	tw := tabwriter.NewWriter(r.con.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "WEBSITE\tUSERNAME\tPASSWORD\tNOTES")
	for _, c := range creds {
		for _, e := range c.LoginEntries {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.Website, e.Username, e.Password, e.Notes)
		}
	}
	tw.Flush()
}
