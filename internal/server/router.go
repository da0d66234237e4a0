package server

import (
	"net/http"
	"strings"
)

// BasicRouter is a simple HTTP router implementing the [Router] interface.
//
// Uses [http.ServeMux] internally for routing. Paths registered through
// [BasicRouter.Handle] keep a per-method handler table so the same path can
// serve different methods (GET and POST on a collection, for instance).
type BasicRouter struct {
	mux         *http.ServeMux
	methods     map[string]map[string]http.Handler
	middlewares []Middleware
}

// NewBasicRouter creates a new [BasicRouter] instance.
func NewBasicRouter() *BasicRouter {
	return &BasicRouter{
		mux:         http.NewServeMux(),
		methods:     map[string]map[string]http.Handler{},
		middlewares: []Middleware{},
	}
}

// Use adds [Middleware] to the [Router] instance's middleware stack, applied in the order it's added.
//
// Middleware must be registered before routes; handlers are wrapped at registration time.
func (r *BasicRouter) Use(middleware ...Middleware) {
	r.middlewares = append(r.middlewares, middleware...)
}

// Handle registers a handler for the specified HTTP method and path.
//
// The handler is wrapped with all registered middleware. Registering a
// second method on the same path extends the path's method table rather
// than colliding in the mux.
func (r *BasicRouter) Handle(method, path string, handler http.Handler) {
	wrapped := r.Apply(handler)

	byMethod, ok := r.methods[path]
	if !ok {
		byMethod = map[string]http.Handler{}
		r.methods[path] = byMethod

		r.mux.HandleFunc(path, func(w http.ResponseWriter, req *http.Request) {
			h, ok := r.methods[path][strings.ToUpper(req.Method)]
			if !ok {
				http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
				return
			}
			h.ServeHTTP(w, req)
		})
	}

	byMethod[strings.ToUpper(method)] = wrapped
}

// Handler registers a custom Handler implementation.
//
// All routes returned by [Handler.Routes] are registered with this handler.
// The handler dispatches on method and sub-path internally, which suits
// handlers that own a path subtree.
func (r *BasicRouter) Handler(handler Handler) {
	wrapped := r.Apply(handler)

	for _, route := range handler.Routes() {
		r.mux.Handle(route, wrapped)
	}
}

// ServeHTTP implements [http.Handler] for the entire router.
func (r *BasicRouter) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Apply wraps a handler with all registered middleware.
//
// Middleware is applied in reverse order (last added wraps first).
func (r *BasicRouter) Apply(handler http.Handler) http.Handler {
	wrapped := handler

	for i := len(r.middlewares) - 1; i >= 0; i-- {
		wrapped = r.middlewares[i](wrapped)
	}

	return wrapped
}
