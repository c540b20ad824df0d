package repositories

import "github.com/SalomePA9/AgentFund-sub000/internal/store"

var (
	_ store.AgentStore        = (*AgentRepository)(nil)
	_ store.PositionStore     = (*PositionRepository)(nil)
	_ store.StockStore        = (*StockRepository)(nil)
	_ store.ActivityStore     = (*ActivityRepository)(nil)
	_ store.MacroOverlayStore = (*MacroOverlayRepository)(nil)
	_ store.UserStore         = (*UserRepository)(nil)
)
