package routers

import (
	"net/http"

	"splitkit/pkg/utils"
)

func MainRouter() *http.ServeMux {

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		utils.WriteJSON(w, map[string]string{"status": "ok"})
	})

	gRouter := groupsRouter()
	mux.Handle("/groups", gRouter)
	mux.Handle("/groups/", gRouter)

	return mux
}
