// Package settings provides the configuration cache shared by the API clients.
//
// Credential strings (vendor client ids, access tokens, reservation API tokens)
// live in the key/value settings table so operators can rotate them without a
// restart. Cache reads them through a TTL with singleflight stampede protection;
// Static and Chain let static configuration act as a fallback source.
//
//	cache := settings.NewCache(settings.Chain{st, settings.Static{"devices.client_id": cfg.Devices.ClientID}}, 5*time.Minute)
//	token, err := cache.Get(ctx, "devices.access_token")
package settings
