package binmod_test

// guestWat is a hand-written minimal guest used across this package's
// tests. It implements just enough of the binmod guest ABI (memory,
// guest_alloc, guest_dealloc, and a handful of exported functions keyed on
// the packed ptr/len calling convention) to exercise the host's codec,
// memory bridge, host-function adapter, and call path without requiring a
// real compiler toolchain for the guest side.
//
// Exports:
//
//	add(ptr, len) i64        -> canned {"object":"data","value":7}
//	initialize(ptr, len) i64 -> canned {"object":"data"}
//	explode(ptr, len) i64    -> traps
//	round_trip(ptr, len) i64 -> exercises host_alloc/host_dealloc, then
//	                             returns the same canned "add" result
//	call_greet(ptr, len) i64 -> calls the imported env.greet host function
//	                            against a fixed {"args":["world"]} input and
//	                            passes its packed result straight through
//	burn_fuel(ptr, len) i64  -> spins a counting loop long enough to exhaust
//	                            a small fuel budget; used to exercise fuel
//	                            accounting and trap surfacing
const guestWat = `
(module
  (import "binmod" "host_alloc" (func $host_alloc (param i32) (result i32)))
  (import "binmod" "host_dealloc" (func $host_dealloc (param i32 i32)))
  (import "env" "greet" (func $greet (param i64) (result i64)))

  (memory (export "memory") 2)

  (global $bump (mut i32) (i32.const 1024))

  (data (i32.const 8) "{\"object\":\"data\",\"value\":7}")
  (data (i32.const 40) "{\"object\":\"data\"}")
  (data (i32.const 60) "{\"args\":[\"world\"]}")

  (func $guest_alloc (export "guest_alloc") (param $size i32) (result i32)
    (local $ptr i32)
    (local.set $ptr (global.get $bump))
    (global.set $bump (i32.add (global.get $bump) (local.get $size)))
    (local.get $ptr))

  (func $guest_dealloc (export "guest_dealloc") (param $ptr i32) (param $size i32))

  (func (export "add") (param i32 i32) (result i64)
    (i64.const 34359738395))

  (func (export "initialize") (param i32 i32) (result i64)
    (i64.const 171798691857))

  (func (export "explode") (param i32 i32) (result i64)
    (unreachable))

  (func (export "round_trip") (param i32 i32) (result i64)
    (local $p i32)
    (local.set $p (call $host_alloc (i32.const 16)))
    (call $host_dealloc (local.get $p) (i32.const 16))
    (i64.const 34359738395))

  (func (export "call_greet") (param i32 i32) (result i64)
    (call $greet (i64.const 257698037778)))

  (func (export "burn_fuel") (param i32 i32) (result i64)
    (local $i i32)
    (local.set $i (i32.const 10000000))
    (block $exit
      (loop $top
        (br_if $exit (i32.eqz (local.get $i)))
        (local.set $i (i32.sub (local.get $i) (i32.const 1)))
        (br $top)))
    (i64.const 34359738395))
)
`
