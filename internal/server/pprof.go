package server

import (
	"net/http"
	hpprof "net/http/pprof"
	"runtime"
)

const pprofPrefix = "/debug/pprof/"

// mountPprof exposes the runtime profiles behind the api key. Mutex and block
// sampling are switched on at a low rate so those profiles are not empty.
func (s *Server) mountPprof() {
	runtime.SetMutexProfileFraction(5)
	runtime.SetBlockProfileRate(int(1e6)) // one sample per blocked millisecond

	s.mux.HandleFunc("GET "+pprofPrefix, s.withAuth(hpprof.Index))
	s.mux.HandleFunc("GET "+pprofPrefix+"cmdline", s.withAuth(hpprof.Cmdline))
	s.mux.HandleFunc("GET "+pprofPrefix+"profile", s.withAuth(hpprof.Profile))
	s.mux.HandleFunc("GET "+pprofPrefix+"symbol", s.withAuth(hpprof.Symbol))
	s.mux.HandleFunc("POST "+pprofPrefix+"symbol", s.withAuth(hpprof.Symbol))
	s.mux.HandleFunc("GET "+pprofPrefix+"trace", s.withAuth(hpprof.Trace))
	s.mux.HandleFunc("GET /debug/pprof", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, pprofPrefix, http.StatusPermanentRedirect)
	})
}
