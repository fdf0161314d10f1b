// Package acl provides rule-based access control for stored objects.
//
// # Overview
//
// Rules name a target object type, a subject, a set of rights and
// optionally the fields they cover. Evaluation is first-match-wins with a
// default policy when nothing matches.
//
// # Access Rights
//
//	acl.Read    // read field values
//	acl.Write   // edit field values
//	acl.Create  // create objects of the type
//	acl.Delete  // delete objects of the type
//	acl.All     // all rights combined
//
// # Subjects
//
//   - "anonymous": sessions without a persona
//   - "authenticated": any named persona
//   - "self": the persona's own object
//   - "group:<name>": members of the named group
//   - "*": everyone
//   - any other value: the persona with that name
//
// # Scope
//
// A rule targeting a type with ScopeSubtree also covers objects embedded
// in objects of that type. ScopeOne covers only the directly embedded
// objects and ScopeBase only the type itself.
//
// # Example
//
//	cfg := acl.NewConfig()
//	cfg.AddRule(acl.NewACL("user", "*", acl.Read).WithFields("password").WithDeny(true))
//	cfg.AddRule(acl.NewACL("user", "self", acl.Read|acl.Write))
//
//	e := acl.NewEvaluator(cfg)
//	ctx := acl.NewAccessContext(persona, "user", target, acl.Write)
//	if e.CheckFieldAccess(ctx, "fullName") {
//	    // allowed
//	}
package acl
