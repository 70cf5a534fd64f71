// © Broadcom. All Rights Reserved.
// The term "Broadcom" refers to Broadcom Inc. and/or its subsidiaries.
// SPDX-License-Identifier: MPL-2.0

package remote

import (
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/crypto/ssh"
)

// SSHCopier implements FileCopier by streaming the file through a remote
// shell. The appliance images this tool manages do not all ship an sftp
// subsystem; cat is always there.
type SSHCopier struct {
	Dialer *SSHDialer
}

// NewSSHCopier returns a copier sharing the production dialer settings.
func NewSSHCopier() *SSHCopier {
	return &SSHCopier{Dialer: NewSSHDialer()}
}

func (c *SSHCopier) CopyFile(host string, port int, user, password, localPath, remotePath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return errors.Wrapf(err, "opening %s", localPath)
	}
	defer f.Close()

	client, err := ssh.Dial("tcp", net.JoinHostPort(host, fmt.Sprintf("%d", port)), c.Dialer.clientConfig(user, password))
	if err != nil {
		return errors.Wrapf(err, "dialing %s:%d", host, port)
	}
	defer client.Close()

	sess, err := client.NewSession()
	if err != nil {
		return errors.Wrap(err, "opening copy session")
	}
	defer sess.Close()

	sess.Stdin = f
	if err := sess.Run(copyCommand(remotePath)); err != nil {
		return errors.Wrapf(err, "writing %s on %s", remotePath, host)
	}
	return nil
}

// copyCommand builds the remote write command. The path is single-quoted so
// spaces and shell metacharacters cannot redirect the write elsewhere.
func copyCommand(remotePath string) string {
	return "cat > '" + strings.ReplaceAll(remotePath, "'", `'\''`) + "'"
}
