package bot

import (
	"log/slog"
	"slices"
	"strings"
	"sync"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/tiergate-bot/internal/bot/handlers"
	"github.com/Proton-105/tiergate-bot/internal/bot/keyboard"
)

type route struct {
	command string
	handler handlers.Handler
}

// Router resolves an update to a handler and runs it behind the middleware
// chain. Resolution order: callbacks by unique, slash commands, the handler
// expected by the user's conversation state, then the default handler.
type Router struct {
	mu        sync.RWMutex
	commands  map[string]handlers.Handler
	callbacks map[string]route
	chain     []handlers.Middleware
	fallback  handlers.Handler
	unknown   handlers.Handler

	dispatcher *Dispatcher
	username   string
	log        *slog.Logger
}

// NewRouter builds an empty Router. Commands addressed to a bot other than
// botUsername ("/cmd@other") are ignored.
func NewRouter(dispatcher *Dispatcher, botUsername string, log *slog.Logger) *Router {
	if log == nil {
		log = slog.Default()
	}

	return &Router{
		commands:   map[string]handlers.Handler{},
		callbacks:  map[string]route{},
		dispatcher: dispatcher,
		username:   strings.TrimPrefix(botUsername, "@"),
		log:        log,
	}
}

// RegisterCommand routes /cmd to h.
func (r *Router) RegisterCommand(cmd string, h handlers.Handler) {
	r.mu.Lock()
	r.commands[normalizeCommand(cmd)] = h
	r.mu.Unlock()
}

// RegisterCallback routes callbacks carrying unique to h. The update is
// gated and metered as command.
func (r *Router) RegisterCallback(unique, command string, h handlers.Handler) {
	r.mu.Lock()
	r.callbacks[unique] = route{command: normalizeCommand(command), handler: h}
	r.mu.Unlock()
}

// Use appends mw to the chain. The first middleware added runs outermost.
func (r *Router) Use(mw handlers.Middleware) {
	r.mu.Lock()
	r.chain = append(r.chain, mw)
	r.mu.Unlock()
}

// SetDefault handles plain messages nothing else claimed.
func (r *Router) SetDefault(h handlers.Handler) {
	r.mu.Lock()
	r.fallback = h
	r.mu.Unlock()
}

// SetUnknown handles slash commands that are not registered.
func (r *Router) SetUnknown(h handlers.Handler) {
	r.mu.Lock()
	r.unknown = h
	r.mu.Unlock()
}

// Route is the telebot endpoint for every update type the bot listens to.
func (r *Router) Route(c telebot.Context) error {
	if c == nil {
		return nil
	}

	if cb := c.Callback(); cb != nil {
		// Always answer so the client stops its spinner, even on errors.
		defer func() {
			if err := c.Respond(); err != nil {
				r.log.Debug("callback respond failed", slog.Any("error", err))
			}
		}()
		return r.routeCallback(c, cb.Data)
	}

	return r.routeMessage(c)
}

func (r *Router) routeCallback(c telebot.Context, data string) error {
	cb, err := keyboard.ParseCallback(data)
	if err != nil {
		return nil
	}

	if cb.Unique == keyboard.UniqueMenu {
		cmd := normalizeCommand(cb.Payload())
		h := r.command(cmd)
		if h == nil {
			r.log.Info("menu callback for unknown command", slog.String("command", cmd))
			return nil
		}
		return r.serve(c, route{command: cmd, handler: h}, nil, "")
	}

	r.mu.RLock()
	rt, ok := r.callbacks[cb.Unique]
	r.mu.RUnlock()
	if !ok {
		r.log.Info("no callback handler found", slog.String("data", data))
		return nil
	}

	return r.serve(c, rt, cb.Args, cb.Payload())
}

func (r *Router) routeMessage(c telebot.Context) error {
	text := strings.TrimSpace(c.Text())

	if strings.HasPrefix(text, "/") {
		cmd, args, payload, ok := parseCommand(text, r.username)
		if !ok {
			return nil
		}
		if h := r.command(cmd); h != nil {
			return r.serve(c, route{command: cmd, handler: h}, args, payload)
		}

		r.mu.RLock()
		unknown := r.unknown
		r.mu.RUnlock()
		return r.run(c, unknown)
	}

	if sender := c.Sender(); sender != nil && r.dispatcher != nil {
		rt, ok, err := r.dispatcher.lookup(handlers.Ctx(c), sender.ID)
		if err != nil {
			return err
		}
		if ok {
			return r.serve(c, rt, nil, "")
		}
	}

	r.mu.RLock()
	fallback := r.fallback
	r.mu.RUnlock()
	return r.run(c, fallback)
}

func (r *Router) command(cmd string) handlers.Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.commands[cmd]
}

// serve records the routed command and its arguments on c, then runs the
// handler. Handlers reached without a command skip the gate.
func (r *Router) serve(c telebot.Context, rt route, args []string, payload string) error {
	handlers.SetCommand(c, rt.command)
	handlers.SetArgs(c, args, payload)
	return r.run(c, rt.handler)
}

func (r *Router) run(c telebot.Context, h handlers.Handler) error {
	if h == nil {
		return nil
	}

	r.mu.RLock()
	chain := slices.Clone(r.chain)
	r.mu.RUnlock()

	for i := len(chain) - 1; i >= 0; i-- {
		h = chain[i](h)
	}
	return h(c)
}

// parseCommand splits "/cmd@bot arg1 arg2" into its parts. ok is false when
// the command is addressed to another bot.
func parseCommand(text, botUsername string) (cmd string, args []string, payload string, ok bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", nil, "", false
	}

	head, target, addressed := strings.Cut(strings.TrimPrefix(fields[0], "/"), "@")
	if addressed && botUsername != "" && !strings.EqualFold(target, botUsername) {
		return "", nil, "", false
	}

	payload = strings.TrimSpace(strings.TrimPrefix(text, fields[0]))
	return normalizeCommand(head), fields[1:], payload, true
}

func normalizeCommand(cmd string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(cmd), "/"))
}
