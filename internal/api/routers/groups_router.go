package routers

import (
	"net/http"

	"splitkit/internal/api/handlers/groups"
)

func groupsRouter() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /groups", groups.CreateGroupHandler)

	mux.HandleFunc("GET /groups", groups.GetMyGroupsHandler)

	mux.HandleFunc("POST /groups/join", groups.JoinGroupByCodeHandler)

	mux.HandleFunc("GET /groups/{id}", groups.GetGroupByIDHandler)

	mux.HandleFunc("POST /groups/{id}/members", groups.AddMemberHandler)

	mux.HandleFunc("POST /groups/{id}/expenses", groups.CreateGroupExpenseHandler)

	mux.HandleFunc("GET /groups/{id}/expenses", groups.GetGroupExpensesHandler)

	mux.HandleFunc("GET /groups/{id}/debts", groups.GetGroupDebtsHandler)

	mux.HandleFunc("POST /groups/{id}/settle-up", groups.SettleUpHandler)

	return mux
}
