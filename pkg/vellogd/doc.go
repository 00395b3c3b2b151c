// Package vellogd is the public API of the go-vellogd render server.
//
// A host with a synchronous sequence of drawing callbacks hands each call
// to a [Device]. The [RemoteDevice] forwards it as a request to a render
// server that accumulates the scene and presents it in its own window on
// its own schedule. The server side is embedded through [Server]:
//
//	srv, err := vellogd.New("/etc/vellogd/config.lua", nil)
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := srv.Start(); err != nil {
//		log.Fatal(err)
//	}
//	defer srv.Stop()
//
// # Connecting a host
//
// A host that owns the server process creates a rendezvous and starts the
// server binary with [Spawn]; the returned [RemoteDevice] is ready for
// drawing once Spawn returns. A server started on its own listens on the
// configured transport address, and hosts reach it with [Connect].
//
// # Configuration
//
// Configuration files are Lua scripts assigning a vellogd.config table.
// With Options.WatchConfig set, edits to the file are applied in place:
// window title, base colour and refresh interval change without a restart.
//
// # Headless Mode
//
// With Options.Headless, or the render.headless setting, no window is
// opened. The scene is still accumulated and SaveAsPng, tiles and
// recordings keep working.
package vellogd
