package binmod

import (
	"os"
	"strings"

	"github.com/bytecodealliance/wasmtime-go/v25"
)

// ModuleSocketAddrAction enumerates the socket operations a guest's sandbox
// predicate is consulted for.
type ModuleSocketAddrAction int

const (
	TcpBind ModuleSocketAddrAction = iota
	TcpConnect
	UdpBind
	UdpConnect
	UdpOutgoingDatagram
)

func (a ModuleSocketAddrAction) String() string {
	switch a {
	case TcpBind:
		return "TcpBind"
	case TcpConnect:
		return "TcpConnect"
	case UdpBind:
		return "UdpBind"
	case UdpConnect:
		return "UdpConnect"
	case UdpOutgoingDatagram:
		return "UdpOutgoingDatagram"
	default:
		return "Unknown"
	}
}

// SocketCheck decides whether a guest socket operation against addr is
// permitted.
type SocketCheck func(addr string, action ModuleSocketAddrAction) bool

// ModuleNetwork is the network slice of a module's sandbox: coarse
// TCP/UDP/DNS toggles plus a per-address predicate.
//
// Neither the toggles nor the predicate reach wasmtime's WASI preview1
// surface, which exposes no socket configuration of its own; both are
// instead the policy a host function consults, via NetworkAllowed, before
// performing networking on the guest's behalf.
type ModuleNetwork struct {
	AllowTCP    bool
	AllowUDP    bool
	AllowDNS    bool
	SocketCheck SocketCheck
}

// DefaultModuleNetwork denies all network access until inherited or
// explicitly opened.
func DefaultModuleNetwork() ModuleNetwork {
	return ModuleNetwork{
		SocketCheck: func(string, ModuleSocketAddrAction) bool { return false },
	}
}

// Inherit grants the same network permissions the host process has: every
// address and action is permitted.
func (n ModuleNetwork) Inherit() ModuleNetwork {
	n.AllowTCP = true
	n.AllowUDP = true
	n.AllowDNS = true
	n.SocketCheck = func(string, ModuleSocketAddrAction) bool { return true }
	return n
}

// ModuleEnv declares the sandbox a Module instance runs inside: argv, env
// vars, directory mounts, and network policy.
type ModuleEnv struct {
	Args    []string
	Env     map[string]string
	Mounts  map[string]string // guestPath -> hostPath
	Network ModuleNetwork
}

// DefaultModuleEnv returns an empty environment with network access denied.
func DefaultModuleEnv() ModuleEnv {
	return ModuleEnv{Network: DefaultModuleNetwork()}
}

// Inherit copies the host process's argv and environment and inherits
// network access.
func (e ModuleEnv) Inherit() ModuleEnv {
	e.Args = append([]string(nil), os.Args[1:]...)
	e.Env = hostEnv()
	e.Network = e.Network.Inherit()
	return e
}

// InheritArgs copies only the host process's argv.
func (e ModuleEnv) InheritArgs() ModuleEnv {
	e.Args = append([]string(nil), os.Args[1:]...)
	return e
}

// InheritEnv copies only the host process's environment variables.
func (e ModuleEnv) InheritEnv() ModuleEnv {
	e.Env = hostEnv()
	return e
}

// InheritNetwork inherits only network access.
func (e ModuleEnv) InheritNetwork() ModuleEnv {
	e.Network = e.Network.Inherit()
	return e
}

func hostEnv() map[string]string {
	out := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			out[k] = v
		}
	}
	return out
}

// Arg appends a single argv entry.
func (e ModuleEnv) Arg(arg string) ModuleEnv {
	e.Args = append(e.Args, arg)
	return e
}

// WithArgs appends multiple argv entries.
func (e ModuleEnv) WithArgs(args ...string) ModuleEnv {
	e.Args = append(e.Args, args...)
	return e
}

// EnvVar sets a single environment variable.
func (e ModuleEnv) EnvVar(key, value string) ModuleEnv {
	if e.Env == nil {
		e.Env = make(map[string]string)
	}
	e.Env[key] = value
	return e
}

// WithEnvVars merges vars into the environment map.
func (e ModuleEnv) WithEnvVars(vars map[string]string) ModuleEnv {
	if e.Env == nil {
		e.Env = make(map[string]string)
	}
	for k, v := range vars {
		e.Env[k] = v
	}
	return e
}

// MountPath mounts hostPath into the guest filesystem at guestPath with
// read+write permission.
func (e ModuleEnv) MountPath(hostPath, guestPath string) ModuleEnv {
	if e.Mounts == nil {
		e.Mounts = make(map[string]string)
	}
	e.Mounts[guestPath] = hostPath
	return e
}

// WithMountPaths mounts multiple guestPath -> hostPath pairs.
func (e ModuleEnv) WithMountPaths(mounts map[string]string) ModuleEnv {
	if e.Mounts == nil {
		e.Mounts = make(map[string]string)
	}
	for k, v := range mounts {
		e.Mounts[k] = v
	}
	return e
}

func (e ModuleEnv) AllowTCP(allow bool) ModuleEnv { e.Network.AllowTCP = allow; return e }
func (e ModuleEnv) AllowUDP(allow bool) ModuleEnv { e.Network.AllowUDP = allow; return e }
func (e ModuleEnv) AllowDNS(allow bool) ModuleEnv { e.Network.AllowDNS = allow; return e }

func (e ModuleEnv) WithSocketCheck(f SocketCheck) ModuleEnv {
	e.Network.SocketCheck = f
	return e
}

// toWasiConfig builds the wasmtime WasiConfig this environment implies:
// argv, environment variables, and directory preopens only. wasmtime-go's
// WASI preview1 surface has no socket-related configuration at all, so
// neither the coarse AllowTCP/AllowUDP/AllowDNS toggles nor SocketCheck
// reach it here — a guest that only ever touches the network through WASI
// preview1 syscalls is unaffected by ModuleNetwork either way. The policy
// is enforced solely via NetworkAllowed, which host functions doing
// networking on the guest's behalf must call explicitly.
func (e ModuleEnv) toWasiConfig() *wasmtime.WasiConfig {
	wasi := wasmtime.NewWasiConfig()

	if len(e.Args) > 0 {
		wasi.SetArgv(e.Args)
	}
	if len(e.Env) > 0 {
		keys := make([]string, 0, len(e.Env))
		values := make([]string, 0, len(e.Env))
		for k, v := range e.Env {
			keys = append(keys, k)
			values = append(values, v)
		}
		wasi.SetEnv(keys, values)
	}
	for guestPath, hostPath := range e.Mounts {
		wasi.PreopenDir(hostPath, guestPath)
	}

	wasi.InheritStdout()
	wasi.InheritStderr()

	return wasi
}

// NetworkAllowed reports whether addr/action is permitted under this
// environment's network policy: both the coarse TCP/UDP toggle and the
// per-address predicate must agree. Host functions that perform networking
// on the guest's behalf (rather than through the WASI sockets the engine
// itself mediates) must call this explicitly, since the underlying
// wasmtime Go binding has no per-connection enforcement hook of its own.
func (e ModuleEnv) NetworkAllowed(addr string, action ModuleSocketAddrAction) bool {
	switch action {
	case TcpBind, TcpConnect:
		if !e.Network.AllowTCP {
			return false
		}
	case UdpBind, UdpConnect, UdpOutgoingDatagram:
		if !e.Network.AllowUDP {
			return false
		}
	}
	if e.Network.SocketCheck == nil {
		return false
	}
	return e.Network.SocketCheck(addr, action)
}
