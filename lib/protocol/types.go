// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

// InstallType selects where an application is installed.
type InstallType int

const (
	// InstallNone lets the service decide from the target uid: the
	// global application user installs globally, anyone else locally.
	InstallNone InstallType = iota
	InstallLocal
	InstallGlobal
	InstallPreloaded
	installTypeEnd
)

// Global reports whether applications of this type are visible to
// every user.
func (t InstallType) Global() bool {
	return t == InstallGlobal || t == InstallPreloaded
}

// PathType classifies a path registered by an application.
type PathType int

const (
	// PathRW is private to the package, read-write.
	PathRW PathType = iota
	// PathRO is private to the package, read-only.
	PathRO
	// PathPublicRO is readable by every application.
	PathPublicRO
	// PathSharedRO is writable by the package and readable by every
	// application.
	PathSharedRO
	// PathTrustedRW is shared read-write between packages of one
	// author.
	PathTrustedRW
	pathTypeEnd
)

func (t PathType) String() string {
	switch t {
	case PathRW:
		return "rw"
	case PathRO:
		return "ro"
	case PathPublicRO:
		return "public-ro"
	case PathSharedRO:
		return "shared-ro"
	case PathTrustedRW:
		return "trusted-rw"
	default:
		return "invalid"
	}
}

// ParsePathType parses the names produced by PathType.String.
func ParsePathType(s string) (PathType, bool) {
	for t := PathRW; t < pathTypeEnd; t++ {
		if t.String() == s {
			return t, true
		}
	}
	return 0, false
}

// UserType classifies a platform user.
type UserType int

const (
	UserNone UserType = iota
	UserSystem
	UserAdmin
	UserGuest
	UserNormal
	userTypeEnd
)

func (t UserType) String() string {
	switch t {
	case UserSystem:
		return "system"
	case UserAdmin:
		return "admin"
	case UserGuest:
		return "guest"
	case UserNormal:
		return "normal"
	default:
		return "none"
	}
}

// ParseUserType parses the names produced by UserType.String.
func ParseUserType(s string) (UserType, bool) {
	for t := UserNone; t < userTypeEnd; t++ {
		if t.String() == s {
			return t, true
		}
	}
	return 0, false
}

// AppPath is a path an application registers at install time.
type AppPath struct {
	Path string
	Type PathType
}

// Wildcard matches any user, application, or privilege in a policy
// filter.
const Wildcard = "*"

// PolicyEntry is one privilege setting of one application for one
// user. User is a decimal uid or Wildcard.
//
// CurrentLevel is the level the user chose for themselves; MaxLevel
// is the ceiling an administrator set. An update leaves empty levels
// unchanged.
type PolicyEntry struct {
	User         string
	AppID        string
	Privilege    string
	CurrentLevel string
	MaxLevel     string
}

// PolicyScope selects which view of the policy a PolicyGet returns.
type PolicyScope int

const (
	// PolicyEffective is the combined policy: per entry, the user's
	// level capped by the administrator's.
	PolicyEffective PolicyScope = iota
	// PolicyAdmin lists administrator-set levels.
	PolicyAdmin
	// PolicySelf lists levels the caller set for themselves.
	PolicySelf
)
