// Command vaultctl drives an encrypted note vault from the command line:
// creating one, unlocking it into a plaintext workspace, launching an
// editor against that workspace, and locking changes back in.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/exec"

	"golang.org/x/term"

	"github.com/duskvault/vault/internal/cryptoutil"

	vaultpkg "github.com/duskvault/vault"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	createCmd := flag.NewFlagSet("create", flag.ExitOnError)
	createDir := createCmd.String("dir", "", "directory to create the vault in")
	createName := createCmd.String("name", "Notes", "vault name (becomes the root folder)")
	createCipher := createCmd.String("cipher", "aes-gcm", "cipher suite: aes-gcm or chacha20poly1305")

	editCmd := flag.NewFlagSet("edit", flag.ExitOnError)
	editDir := editCmd.String("dir", "", "vault directory")
	editEditor := editCmd.String("editor", "", "editor to launch against the workspace; waits for it to exit before locking")

	statusCmd := flag.NewFlagSet("status", flag.ExitOnError)
	statusDir := statusCmd.String("dir", "", "vault directory")

	recoverCmd := flag.NewFlagSet("recover", flag.ExitOnError)
	recoverBase := recoverCmd.String("base", "", "workspace base directory to scan for leftovers")
	recoverClean := recoverCmd.Bool("clean", false, "securely delete every leftover workspace found")

	switch os.Args[1] {
	case "create":
		dieIf(createCmd.Parse(os.Args[2:]))
		dieIf(cmdCreate(*createDir, *createName, *createCipher))
	case "edit":
		dieIf(editCmd.Parse(os.Args[2:]))
		dieIf(cmdEdit(*editDir, *editEditor))
	case "status":
		dieIf(statusCmd.Parse(os.Args[2:]))
		dieIf(cmdStatus(*statusDir))
	case "recover":
		dieIf(recoverCmd.Parse(os.Args[2:]))
		dieIf(cmdRecover(*recoverBase, *recoverClean))
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Print(`vaultctl commands:

  create  --dir path [--name "Notes"] [--cipher aes-gcm|chacha20poly1305]
  edit    --dir path --editor /usr/bin/vim
  status  --dir path
  recover --base path [--clean]
`)
}

func dieIf(err error) {
	if err == nil {
		return
	}
	fmt.Fprintln(os.Stderr, "vaultctl:", err)
	os.Exit(1)
}

func readPassword(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)
	if term.IsTerminal(int(os.Stdin.Fd())) {
		pw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		return pw, err
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return nil, err
	}
	return []byte(trimNewline(line)), nil
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}

func parseCipher(name string) (cryptoutil.Alg, error) {
	switch name {
	case "aes-gcm", "":
		return cryptoutil.AlgAESGCM, nil
	case "chacha20poly1305":
		return cryptoutil.AlgChaCha20P1, nil
	default:
		return "", fmt.Errorf("unknown cipher %q", name)
	}
}

func cmdCreate(dir, name, cipherName string) error {
	if dir == "" {
		return fmt.Errorf("--dir is required")
	}
	cipher, err := parseCipher(cipherName)
	if err != nil {
		return err
	}
	pw, err := readPassword("New vault password: ")
	if err != nil {
		return err
	}
	confirm, err := readPassword("Confirm password: ")
	if err != nil {
		return err
	}
	if string(pw) != string(confirm) {
		return fmt.Errorf("passwords do not match")
	}

	_, err = vaultpkg.Create(context.Background(), dir, name, pw, vaultpkg.Config{Cipher: cipher}, progressBar)
	if err != nil {
		return err
	}
	fmt.Printf("vault created at %s\n", dir)
	return nil
}

// cmdEdit runs one whole unlock/edit/lock cycle within a single process
// invocation. It never returns to the shell between unlock and lock: the
// session's key material lives only in this process's memory, and per
// §4.10 a workspace left behind by a process that exits without locking
// has no path back to its keys, so there is no sound way to split this
// across two separate vaultctl invocations.
func cmdEdit(dir, editor string) error {
	if dir == "" {
		return fmt.Errorf("--dir is required")
	}
	if editor == "" {
		return fmt.Errorf("--editor is required")
	}
	h, err := vaultpkg.Open(dir, vaultpkg.Config{EditorPath: editor})
	if err != nil {
		return err
	}
	pw, err := readPassword("Vault password: ")
	if err != nil {
		return err
	}
	sess, err := h.Unlock(context.Background(), pw, progressBar)
	if err != nil {
		return err
	}
	fmt.Printf("workspace ready at %s\n", sess.WorkspacePath())

	cmd := exec.Command(editor, sess.WorkspacePath())
	cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
	if err := cmd.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "vaultctl: editor exited with an error, locking anyway:", err)
	}

	if err := sess.Lock(context.Background(), progressBar); err != nil {
		return err
	}
	fmt.Println("locked")
	return nil
}

func cmdStatus(dir string) error {
	if dir == "" {
		return fmt.Errorf("--dir is required")
	}
	if !vaultpkg.IsVault(dir) {
		return fmt.Errorf("%s is not a vault", dir)
	}
	fmt.Printf("%s: valid vault identity\n", dir)
	return nil
}

func cmdRecover(base string, clean bool) error {
	if base == "" {
		return fmt.Errorf("--base is required")
	}
	leftovers, err := vaultpkg.ListLeftoverWorkspaces(base)
	if err != nil {
		return err
	}
	if len(leftovers) == 0 {
		fmt.Println("no leftover workspaces found")
		return nil
	}
	for _, l := range leftovers {
		fmt.Println(l)
	}
	if clean {
		return vaultpkg.CleanLeftoverWorkspaces(leftovers)
	}
	fmt.Println("re-run with --clean to securely delete these")
	return nil
}

func progressBar(p vaultpkg.Progress) {
	fmt.Fprintf(os.Stderr, "\r%s: %d/%d", p.Phase, p.Done, p.Total)
	if p.Done == p.Total {
		fmt.Fprintln(os.Stderr)
	}
}
