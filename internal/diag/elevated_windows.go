//go:build windows

package diag

import "golang.org/x/sys/windows"

// Elevated reports whether the process token is a member of the
// Administrators group. Low-level hooks do not see input aimed at elevated
// windows unless this is true.
func Elevated() bool {
	var token windows.Token
	h, _ := windows.GetCurrentProcess()
	if err := windows.OpenProcessToken(h, windows.TOKEN_QUERY, &token); err != nil {
		return false
	}
	defer token.Close()

	var sid *windows.SID
	err := windows.AllocateAndInitializeSid(
		&windows.SECURITY_NT_AUTHORITY,
		2,
		windows.SECURITY_BUILTIN_DOMAIN_RID,
		windows.DOMAIN_ALIAS_RID_ADMINS,
		0, 0, 0, 0, 0, 0,
		&sid,
	)
	if err != nil {
		return false
	}
	defer windows.FreeSid(sid)

	member, err := token.IsMember(sid)
	return err == nil && member
}
