package handlers

import "net/http"

func (a *App) Credits(w http.ResponseWriter, r *http.Request) {
	balance, err := a.Ledger.Balance(r.Context(), a.currentOwnerID(r))
	if err != nil {
		a.writeError(w, r, err, nil)
		return
	}
	a.json(w, http.StatusOK, map[string]int64{"balance": balance})
}
